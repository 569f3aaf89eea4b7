package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var srtTimingRegex = regexp.MustCompile(
	`^\s*(\S+)\s*-->\s*(\S+)`,
)

// ParseSRT reads SubRip text back into blocks. Timestamps are kept as
// written (normalized), so a file produced by RenderSRT parses back to the
// blocks it was rendered from. CRLF and LF line endings are both accepted.
func ParseSRT(r io.Reader) ([]Block, error) {
	var blocks []Block
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current *Block
	var textLines []string
	timed := false
	lineNum := 0

	flush := func() {
		if current != nil && timed {
			current.Text = strings.Join(textLines, "\n")
			blocks = append(blocks, *current)
		}
		current = nil
		textLines = nil
		timed = false
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if current == nil {
			id, err := strconv.Atoi(strings.TrimSpace(line))
			if err != nil {
				return nil, fmt.Errorf("line %d: expected cue number, got %q", lineNum, line)
			}
			current = &Block{ID: id}
			continue
		}

		if !timed {
			matches := srtTimingRegex.FindStringSubmatch(line)
			if len(matches) != 3 {
				return nil, fmt.Errorf("line %d: expected timing line, got %q", lineNum, line)
			}
			current.StartTime = NormalizeTimestamp(matches[1])
			current.EndTime = NormalizeTimestamp(matches[2])
			timed = true
			continue
		}

		textLines = append(textLines, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SRT: %w", err)
	}

	return blocks, nil
}

// ParseSRTFile opens and parses an SRT file.
func ParseSRTFile(path string) ([]Block, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SRT file: %w", err)
	}
	defer file.Close()

	return ParseSRT(file)
}
