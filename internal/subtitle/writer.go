package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SubRip format
type SRTWriter struct{}

// WebVTT format
type VTTWriter struct{}

// Advanced SubStation Alpha format
type ASSWriter struct {
	Title    string
	FontName string
	FontSize int
}

func NewWriter(format Format) (Writer, error) {
	switch format {
	case FormatSRT:
		return &SRTWriter{}, nil
	case FormatVTT:
		return &VTTWriter{}, nil
	case FormatASS:
		return &ASSWriter{
			Title:    "Letra Synchronized Lyrics",
			FontName: "Arial",
			FontSize: 28,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// writes the rendered SRT text unchanged
func (w *SRTWriter) Write(blocks []Block, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(RenderSRT(blocks)), 0644)
}

// writes the blocks to a VTT file
func (w *VTTWriter) Write(blocks []Block, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	cues, err := timedCues(blocks)
	if err != nil {
		return err
	}

	var sb strings.Builder

	// VTT header
	sb.WriteString("WEBVTT\n\n")

	for _, cue := range cues {
		// cue identifier keeps the block id
		sb.WriteString(fmt.Sprintf("%d\n", cue.id))

		// timestamps: 00:00:00.000 --> 00:00:00.000
		sb.WriteString(fmt.Sprintf("%s --> %s\n",
			formatVTTTime(cue.start),
			formatVTTTime(cue.end)))

		sb.WriteString(cue.text)
		sb.WriteString("\n\n")
	}

	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// writes the blocks to an ASS file
func (w *ASSWriter) Write(blocks []Block, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	cues, err := timedCues(blocks)
	if err != nil {
		return err
	}

	var sb strings.Builder

	// script info section
	sb.WriteString("[Script Info]\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", w.Title))
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString("Collisions: Normal\n")
	sb.WriteString("PlayDepth: 0\n\n")

	// v4+ styles section
	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	sb.WriteString(fmt.Sprintf("Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1\n\n",
		w.FontName, w.FontSize))

	// events section
	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, cue := range cues {
		sb.WriteString(fmt.Sprintf("Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(cue.start),
			formatASSTime(cue.end),
			escapeASSText(cue.text)))
	}

	return os.WriteFile(path, []byte(sb.String()), 0644)
}

type timedCue struct {
	id    int
	start time.Duration
	end   time.Duration
	text  string
}

// VTT and ASS need real durations, so unparseable timestamps are an error
// here even though RenderSRT passes them through.
func timedCues(blocks []Block) ([]timedCue, error) {
	sorted := SortedBlocks(blocks)
	cues := make([]timedCue, 0, len(sorted))
	for _, b := range sorted {
		start, err := ParseTimestamp(b.StartTime)
		if err != nil {
			return nil, fmt.Errorf("block %d: start: %w", b.ID, err)
		}
		end, err := ParseTimestamp(b.EndTime)
		if err != nil {
			return nil, fmt.Errorf("block %d: end: %w", b.ID, err)
		}
		cues = append(cues, timedCue{id: b.ID, start: start, end: end, text: b.Text})
	}
	return cues, nil
}

func formatVTTTime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
}

func formatASSTime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	centis := (int(d.Milliseconds()) % 1000) / 10

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, seconds, centis)
}

func escapeASSText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\\N")
	text = strings.ReplaceAll(text, "\n", "\\N")
	return text
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// file extension for a format
func GetExtensionForFormat(format Format) string {
	switch format {
	case FormatSRT:
		return ".srt"
	case FormatVTT:
		return ".vtt"
	case FormatASS:
		return ".ass"
	default:
		return ".srt"
	}
}
