package subtitle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderSRTEmpty(t *testing.T) {
	if got := RenderSRT(nil); got != "" {
		t.Errorf("RenderSRT(nil) = %q, want empty", got)
	}
	if got := RenderSRT([]Block{}); got != "" {
		t.Errorf("RenderSRT([]) = %q, want empty", got)
	}
}

func TestRenderSRTScenario(t *testing.T) {
	blocks := []Block{
		{ID: 1, StartTime: "1:02,500", EndTime: "1:05,000", Text: "Hello"},
		{ID: 2, StartTime: "00:01:06,000", EndTime: "00:01:08,250", Text: "World"},
	}

	want := "1\r\n00:01:02,500 --> 00:01:05,000\r\nHello\r\n\r\n" +
		"2\r\n00:01:06,000 --> 00:01:08,250\r\nWorld\r\n\r\n"

	if got := RenderSRT(blocks); got != want {
		t.Errorf("RenderSRT() =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderSRTSortsByID(t *testing.T) {
	blocks := []Block{
		{ID: 2, StartTime: "00:00:03,000", EndTime: "00:00:04,000", Text: "second"},
		{ID: 1, StartTime: "00:00:01,000", EndTime: "00:00:02,000", Text: "first"},
	}

	got := RenderSRT(blocks)
	if !strings.HasPrefix(got, "1\r\n00:00:01,000") {
		t.Errorf("expected id 1 first, got %q", got)
	}
	if blocks[0].ID != 2 {
		t.Error("RenderSRT must not reorder its input")
	}
}

func TestRenderSRTStableForDuplicateAndGappedIDs(t *testing.T) {
	blocks := []Block{
		{ID: 5, StartTime: "9", EndTime: "10", Text: "e"},
		{ID: 3, StartTime: "1", EndTime: "2", Text: "a"},
		{ID: 3, StartTime: "3", EndTime: "4", Text: "b"},
		{ID: 0, StartTime: "0", EndTime: "1", Text: "zero"},
	}

	got := RenderSRT(blocks)
	order := []string{"zero", "\r\na\r\n", "\r\nb\r\n", "\r\ne\r\n"}
	last := -1
	for _, needle := range order {
		idx := strings.Index(got, needle)
		if idx <= last {
			t.Fatalf("%q out of order in %q", needle, got)
		}
		last = idx
	}
	if !strings.Contains(got, "5\r\n00:00:09,000 --> 00:00:10,000") {
		t.Errorf("ids must not be renumbered: %q", got)
	}
}

func TestRenderSRTKeepsMalformedTimestamps(t *testing.T) {
	blocks := []Block{{ID: 1, StartTime: "soon", EndTime: "later", Text: "x"}}
	want := "1\r\nsoon --> later\r\nx\r\n\r\n"
	if got := RenderSRT(blocks); got != want {
		t.Errorf("RenderSRT() = %q, want %q", got, want)
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	blocks := []Block{
		{ID: 1, StartTime: "00:00:01,000", EndTime: "00:00:02,500", Text: "Olá"},
		{ID: 2, StartTime: "00:00:03,000", EndTime: "00:00:04,000", Text: "mundo"},
	}

	parsed, err := ParseSRT(strings.NewReader(RenderSRT(blocks)))
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(parsed) != len(blocks) {
		t.Fatalf("got %d blocks, want %d", len(parsed), len(blocks))
	}
	for i := range blocks {
		if parsed[i] != blocks[i] {
			t.Errorf("block %d = %+v, want %+v", i, parsed[i], blocks[i])
		}
	}
}

func TestParseSRTFile(t *testing.T) {
	content := "\ufeff1\n00:00:01.000 --> 00:00:04,000\nHello, world!\n\n" +
		"2\n00:00:05,500 --> 00:00:08,200\nThis is a test.\nWith multiple lines.\n"

	path := filepath.Join(t.TempDir(), "test.srt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	blocks, err := ParseSRTFile(path)
	if err != nil {
		t.Fatalf("ParseSRTFile: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].StartTime != "00:00:01,000" {
		t.Errorf("start = %q, want normalized", blocks[0].StartTime)
	}
	if blocks[1].Text != "This is a test.\nWith multiple lines." {
		t.Errorf("text = %q", blocks[1].Text)
	}
}

func TestParseSRTRejectsGarbage(t *testing.T) {
	if _, err := ParseSRT(strings.NewReader("not a cue\n")); err == nil {
		t.Error("expected error")
	}
}

func TestLines(t *testing.T) {
	blocks := []Block{{ID: 2, Text: "b"}, {ID: 1, Text: "a"}}
	got := Lines(blocks)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Lines() = %v", got)
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		want   string
	}{
		{"song.mp3", FormatSRT, "song.srt"},
		{"/music/My Song.final.flac", FormatSRT, "My Song.final.srt"},
		{"track", FormatVTT, "track.vtt"},
		{"", FormatSRT, "legenda.srt"},
		{".mp3", FormatSRT, "legenda.srt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutputName(tt.name, tt.format); got != tt.want {
				t.Errorf("OutputName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
