package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mgpai22/letra/internal/logging"
	"github.com/mgpai22/letra/internal/provider"
)

var (
	// the collaborator call itself errored (network, auth, quota)
	ErrFailed = errors.New("transcription request failed")
	// the collaborator answered with something other than a JSON string array
	ErrFormatInvalid = errors.New("transcription response is not a valid JSON array of strings")
	// a well formed answer with no lyrics, usually instrumental audio
	ErrEmpty = errors.New("no lyrics were transcribed")
)

// transcription options
type Options struct {
	Language string // Language sung in the audio, empty to let the model decide
	Prompt   string // Extra instructions appended to the prompt
}

// turns audio into ordered lyric lines through the AI collaborator
type Transcriber struct {
	client  provider.Client
	options Options
	logger  *logging.Logger
}

func New(client provider.Client, opts Options, logger *logging.Logger) *Transcriber {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Transcriber{
		client:  client,
		options: opts,
		logger:  logger,
	}
}

// Transcribe asks the collaborator for the lyrics of the audio. The result
// keeps the order the model returned and holds at least one non-blank line.
func (t *Transcriber) Transcribe(ctx context.Context, mimeType string, audio []byte) ([]string, error) {
	t.logger.Debugw("Requesting transcription",
		"mime_type", mimeType,
		"bytes", len(audio),
	)

	text, err := t.client.Generate(ctx, provider.Request{
		MIMEType: mimeType,
		Audio:    audio,
		Prompt:   t.buildPrompt(),
		Schema:   provider.SchemaStringArray,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailed, err)
	}

	lines, err := parseLines(text)
	if err != nil {
		t.logger.Warnw("Rejected transcription response",
			"error", err,
			"response", provider.TruncateString(text, 200),
		)
		return nil, err
	}

	t.logger.Debugw("Transcription parsed", "lines", len(lines))
	return lines, nil
}

// creates the prompt for transcription
func (t *Transcriber) buildPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are an expert audio transcription tool. Your only task is to listen to the song and transcribe its lyrics.\n\n")
	sb.WriteString("RULES:\n")
	sb.WriteString("1. JSON FORMAT: Return the lyrics as a JSON array of strings, where each string is one meaningful line or phrase of the song.\n")
	sb.WriteString("2. CLEAN OUTPUT: The output must contain ONLY the JSON array, with no extra text or markdown formatting.\n")
	sb.WriteString("3. NO VOCALS: If the song is instrumental or has no clear vocals, return an empty JSON array: [].\n")

	if t.options.Language != "" {
		sb.WriteString(fmt.Sprintf("4. LANGUAGE: The song is sung in %s. Transcribe it in that language without translating.\n", t.options.Language))
	}

	if t.options.Prompt != "" {
		sb.WriteString("\n")
		sb.WriteString(t.options.Prompt)
		sb.WriteString("\n")
	}

	sb.WriteString("\nExample output:\n")
	sb.WriteString(`["Hello, it's me", "I was wondering if after all these years you'd like to meet", "To go over everything"]`)
	sb.WriteString("\n\nTranscribe the provided audio.")

	return sb.String()
}

// parses the collaborator text strictly as a JSON array of strings
func parseLines(text string) ([]string, error) {
	cleaned := provider.CleanJSONResponse(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrFormatInvalid)
	}

	var lines []string
	if err := json.Unmarshal([]byte(cleaned), &lines); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormatInvalid, err)
	}

	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	if !hasContent(lines) {
		return nil, ErrEmpty
	}

	return lines, nil
}

func hasContent(lines []string) bool {
	for _, line := range lines {
		if line != "" {
			return true
		}
	}
	return false
}
