package synchronize

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mgpai22/letra/internal/provider"
	"github.com/mgpai22/letra/internal/subtitle"
)

type fakeClient struct {
	response string
	err      error
	requests []provider.Request
}

func (f *fakeClient) Generate(ctx context.Context, req provider.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.response, f.err
}

func TestParseBlocks(t *testing.T) {
	lines := []string{"Hello", "World", "Coração"}

	tests := []struct {
		name      string
		input     string
		wantCount int
		wantErr   error
	}{
		{
			name:      "valid array",
			input:     `[{"id":1,"startTime":"00:00:01,000","endTime":"00:00:02,000","text":"Hello"}]`,
			wantCount: 1,
		},
		{
			name:      "code fenced",
			input:     "```json\n[{\"id\":1,\"startTime\":\"1\",\"endTime\":\"2\",\"text\":\"World\"}]\n```",
			wantCount: 1,
		},
		{
			name:      "ids out of order and duplicated are kept",
			input:     `[{"id":3,"startTime":"a","endTime":"b","text":"World"},{"id":3,"startTime":"c","endTime":"d","text":"Hello"}]`,
			wantCount: 2,
		},
		{
			name:      "float id with integral value",
			input:     `[{"id":2.0,"startTime":"1","endTime":"2","text":"Hello"}]`,
			wantCount: 1,
		},
		{name: "empty array", input: `[]`, wantErr: ErrEmpty},
		{name: "null", input: `null`, wantErr: ErrEmpty},
		{name: "not JSON", input: `sorry, I cannot do that`, wantErr: ErrFormatInvalid},
		{name: "missing id", input: `[{"startTime":"1","endTime":"2","text":"Hello"}]`, wantErr: ErrFormatInvalid},
		{name: "missing text", input: `[{"id":1,"startTime":"1","endTime":"2"}]`, wantErr: ErrFormatInvalid},
		{name: "missing endTime", input: `[{"id":1,"startTime":"1","text":"Hello"}]`, wantErr: ErrFormatInvalid},
		{name: "string id", input: `[{"id":"1","startTime":"1","endTime":"2","text":"Hello"}]`, wantErr: ErrFormatInvalid},
		{name: "numeric timestamp", input: `[{"id":1,"startTime":1.5,"endTime":"2","text":"Hello"}]`, wantErr: ErrFormatInvalid},
		{name: "fractional id", input: `[{"id":1.5,"startTime":"1","endTime":"2","text":"Hello"}]`, wantErr: ErrFormatInvalid},
		{name: "invented text", input: `[{"id":1,"startTime":"1","endTime":"2","text":"Goodbye"}]`, wantErr: ErrFormatInvalid},
		{name: "array of strings", input: `["Hello"]`, wantErr: ErrFormatInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, err := parseBlocks(tt.input, lines)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(blocks) != tt.wantCount {
				t.Errorf("got %d blocks, want %d", len(blocks), tt.wantCount)
			}
		})
	}
}

func TestParseBlocksRestoresVerbatimText(t *testing.T) {
	// "Coração" in decomposed form with padding, as some models return it
	decomposed := "  Corac\u0327a\u0303o "
	payload, _ := json.Marshal([]map[string]any{
		{"id": 1, "startTime": "1", "endTime": "2", "text": decomposed},
	})

	blocks, err := parseBlocks(string(payload), []string{"Cora\u00e7\u00e3o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if blocks[0].Text != "Cora\u00e7\u00e3o" {
		t.Errorf("text = %q, want the input line verbatim", blocks[0].Text)
	}
}

func TestSynchronizeVerbatimTextProperty(t *testing.T) {
	lines := []string{"Hello", "World"}
	client := &fakeClient{response: `[
		{"id": 1, "startTime": "1:02,500", "endTime": "1:05,000", "text": "Hello"},
		{"id": 2, "startTime": "00:01:06,000", "endTime": "00:01:08,250", "text": "World"}
	]`}

	blocks, err := New(client, Options{}, nil).Synchronize(context.Background(), "audio/mpeg", []byte("x"), lines)
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}

	for _, b := range blocks {
		found := false
		for _, line := range lines {
			if b.Text == line {
				found = true
			}
		}
		if !found {
			t.Errorf("block %d text %q is not an input line", b.ID, b.Text)
		}
	}

	want := "1\r\n00:01:02,500 --> 00:01:05,000\r\nHello\r\n\r\n" +
		"2\r\n00:01:06,000 --> 00:01:08,250\r\nWorld\r\n\r\n"
	if got := subtitle.RenderSRT(blocks); got != want {
		t.Errorf("rendered =\n%q\nwant\n%q", got, want)
	}
}

func TestSynchronizeDoesNotReorder(t *testing.T) {
	client := &fakeClient{response: `[
		{"id": 2, "startTime": "3", "endTime": "4", "text": "b"},
		{"id": 1, "startTime": "1", "endTime": "2", "text": "a"}
	]`}

	blocks, err := New(client, Options{}, nil).Synchronize(context.Background(), "audio/mpeg", nil, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
	if blocks[0].ID != 2 || blocks[0].StartTime != "3" {
		t.Errorf("blocks reordered or rewritten: %+v", blocks)
	}
}

func TestSynchronizePromptCarriesLinesVerbatim(t *testing.T) {
	lines := []string{`Rock & "Roll"`, "<b>loud</b>", "  spaced  "}
	client := &fakeClient{response: `[{"id":1,"startTime":"1","endTime":"2","text":"<b>loud</b>"}]`}

	if _, err := New(client, Options{Prompt: "Song is in English."}, nil).
		Synchronize(context.Background(), "audio/wav", []byte("x"), lines); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}

	req := client.requests[0]
	if req.Schema != provider.SchemaBlockArray {
		t.Errorf("schema = %v, want block array", req.Schema)
	}
	start := strings.Index(req.Prompt, "[\n")
	end := strings.LastIndex(req.Prompt, "]")
	if start < 0 || end < start {
		t.Fatalf("prompt has no JSON array: %s", req.Prompt)
	}
	var embedded []string
	if err := json.Unmarshal([]byte(req.Prompt[start:end+1]), &embedded); err != nil {
		t.Fatalf("embedded lyrics are not JSON: %v", err)
	}
	if strings.Join(embedded, "\n") != strings.Join(lines, "\n") {
		t.Errorf("embedded = %q, want %q", embedded, lines)
	}
	if !strings.Contains(req.Prompt, "Song is in English.") {
		t.Error("extra prompt missing")
	}
}

func TestSynchronizeErrors(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name    string
		client  *fakeClient
		wantErr error
	}{
		{"collaborator error", &fakeClient{err: cause}, ErrFailed},
		{"empty", &fakeClient{response: `[]`}, ErrEmpty},
		{"bad format", &fakeClient{response: `{"blocks": []}`}, ErrFormatInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.client, Options{}, nil).Synchronize(context.Background(), "audio/mpeg", nil, []string{"a"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
