package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultOpenAIModel = "gpt-4o-audio-preview"

const openAIJSONInstruction = "You respond with JSON only. Never wrap the JSON in markdown or add commentary."

// implements Client using the OpenAI chat completions API with audio input
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)

	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIClient{
		client: client,
		model:  model,
	}, nil
}

func (c *OpenAIClient) Model() string {
	return c.model
}

// audio crosses the API as base64 inside the JSON request body
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	format, err := OpenAIAudioFormat(req.MIMEType)
	if err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openAIJSONInstruction),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(req.Prompt),
				openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
					Data:   base64.StdEncoding.EncodeToString(req.Audio),
					Format: format,
				}),
			}),
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		if refusal := resp.Choices[0].Message.Refusal; refusal != "" {
			return "", fmt.Errorf("openai refused the request: %s", refusal)
		}
		return "", fmt.Errorf("no text in OpenAI response")
	}

	return content, nil
}

// OpenAIAudioFormat maps a MIME type to one of the input_audio formats the
// API accepts. Other formats must be transcoded before the request.
func OpenAIAudioFormat(mimeType string) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch mt {
	case "audio/mpeg", "audio/mp3", "audio/mpeg3", "audio/x-mpeg-3":
		return "mp3", nil
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return "wav", nil
	default:
		return "", fmt.Errorf("openai accepts only mp3 or wav audio, got %q (enable transcoding)", mimeType)
	}
}
