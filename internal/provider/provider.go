package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// AI service provider
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// output shape the collaborator is asked to produce
type Schema int

const (
	SchemaNone Schema = iota
	// JSON array of strings
	SchemaStringArray
	// JSON array of {id, startTime, endTime, text}
	SchemaBlockArray
)

// one audio + instruction request
type Request struct {
	MIMEType string
	Audio    []byte
	Prompt   string
	Schema   Schema
}

// Client is the boundary to the generative AI service. Generate returns the
// raw text payload; callers own parsing and validation.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Options struct {
	Model string
	// overrides the API endpoint, mostly for tests
	BaseURL string
}

// creates a Client for the provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Client, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAIClient(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// ParseProvider maps a user supplied name to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderGemini, "":
		return ProviderGemini, nil
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("unsupported provider %q: use gemini or openai", s)
	}
}

// environment variable holding the API key for a provider
func APIKeyEnv(provider Provider) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

var jsonBlockRegex = regexp.MustCompile("```(?:json)?\\s*")

// CleanJSONResponse removes markdown code fences around a JSON payload.
func CleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)

	s = jsonBlockRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")

	return strings.TrimSpace(s)
}

// truncates a string to maxLen bytes for log and error messages
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
