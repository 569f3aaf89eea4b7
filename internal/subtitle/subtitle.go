package subtitle

import (
	"path/filepath"
	"sort"
	"strings"
)

// one timed lyric line as returned by the synchronizer
type Block struct {
	ID        int    `json:"id"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Text      string `json:"text"`
}

// represents supported subtitle formats
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

// name used when the source audio has no usable file name
const fallbackBaseName = "legenda"

// interface for writing subtitles to files
type Writer interface {
	Write(blocks []Block, path string) error
}

// copy of blocks ordered by id; equal ids keep their relative order
func SortedBlocks(blocks []Block) []Block {
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// lyric lines in id order
func Lines(blocks []Block) []string {
	sorted := SortedBlocks(blocks)
	lines := make([]string, len(sorted))
	for i, b := range sorted {
		lines[i] = b.Text
	}
	return lines
}

// ParseFormat maps a user supplied format name to a Format.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "srt":
		return FormatSRT, true
	case "vtt":
		return FormatVTT, true
	case "ass", "ssa":
		return FormatASS, true
	default:
		return "", false
	}
}

// OutputName derives the subtitle file name from the audio file name:
// directory and extension are stripped and the format extension appended.
func OutputName(audioName string, format Format) string {
	base := filepath.Base(strings.TrimSpace(audioName))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = fallbackBaseName
	}
	return base + GetExtensionForFormat(format)
}
