package provider

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	DefaultGeminiModel = "gemini-2.5-pro"

	// inline request payloads above this size go through the Files API
	geminiInlineLimit = 18 << 20
)

// implements Client using Google Gemini
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey string, opts Options) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

func (c *GeminiClient) Model() string {
	return c.model
}

// sends the audio and prompt, asking for JSON matching req.Schema
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	audioPart, cleanup, err := c.audioPart(ctx, req)
	if err != nil {
		return "", err
	}
	defer cleanup()

	parts := []*genai.Part{
		audioPart,
		genai.NewPartFromText(req.Prompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{}
	if schema := geminiSchema(req.Schema); schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	return geminiResponseText(result)
}

// small payloads travel inline; large ones are uploaded and removed after
func (c *GeminiClient) audioPart(ctx context.Context, req Request) (*genai.Part, func(), error) {
	if len(req.Audio) <= geminiInlineLimit {
		return genai.NewPartFromBytes(req.Audio, req.MIMEType), func() {}, nil
	}

	uploaded, err := c.client.Files.Upload(ctx, bytes.NewReader(req.Audio), &genai.UploadFileConfig{
		MIMEType: req.MIMEType,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upload audio file: %w", err)
	}

	cleanup := func() {
		_, _ = c.client.Files.Delete(context.WithoutCancel(ctx), uploaded.Name, nil)
	}
	return genai.NewPartFromURI(uploaded.URI, uploaded.MIMEType), cleanup, nil
}

func geminiSchema(schema Schema) *genai.Schema {
	switch schema {
	case SchemaStringArray:
		return &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		}
	case SchemaBlockArray:
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: "Subtitle blocks for the synchronized lyrics.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id": {
						Type:        genai.TypeNumber,
						Description: "Sequential subtitle index starting at 1.",
					},
					"startTime": {
						Type:        genai.TypeString,
						Description: "Start timestamp in HH:MM:SS,mmm format.",
					},
					"endTime": {
						Type:        genai.TypeString,
						Description: "End timestamp in HH:MM:SS,mmm format.",
					},
					"text": {
						Type:        genai.TypeString,
						Description: "The lyric line exactly as provided.",
					},
				},
				Required:         []string{"id", "startTime", "endTime", "text"},
				PropertyOrdering: []string{"id", "startTime", "endTime", "text"},
			},
		}
	default:
		return nil
	}
}

func geminiResponseText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			break
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no text in Gemini response")
	}

	return sb.String(), nil
}
