package synchronize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/mgpai22/letra/internal/logging"
	"github.com/mgpai22/letra/internal/provider"
	"github.com/mgpai22/letra/internal/subtitle"
)

var (
	// the collaborator call itself errored (network, auth, quota)
	ErrFailed = errors.New("synchronization request failed")
	// the answer was not a JSON array of complete subtitle blocks
	ErrFormatInvalid = errors.New("synchronization response is not a valid JSON array of subtitle blocks")
	// a well formed answer with no blocks: no clear vocals or unsupported audio
	ErrEmpty = errors.New("no lyric line could be located in the audio")
)

type Options struct {
	Prompt string // Extra instructions appended to the prompt
}

// times lyric lines against the audio through the AI collaborator
type Synchronizer struct {
	client  provider.Client
	options Options
	logger  *logging.Logger
}

func New(client provider.Client, opts Options, logger *logging.Logger) *Synchronizer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Synchronizer{
		client:  client,
		options: opts,
		logger:  logger,
	}
}

// block as decoded from the collaborator; pointers detect missing fields
type rawBlock struct {
	ID        *float64 `json:"id"`
	StartTime *string  `json:"startTime"`
	EndTime   *string  `json:"endTime"`
	Text      *string  `json:"text"`
}

// Synchronize asks the collaborator to time the given lines. Blocks come
// back in the order received, with ids and timestamps as the model wrote
// them; every block text is one of the input lines.
func (s *Synchronizer) Synchronize(
	ctx context.Context,
	mimeType string,
	audio []byte,
	lines []string,
) ([]subtitle.Block, error) {
	prompt, err := s.buildPrompt(lines)
	if err != nil {
		return nil, err
	}

	s.logger.Debugw("Requesting synchronization",
		"mime_type", mimeType,
		"bytes", len(audio),
		"lines", len(lines),
	)

	text, err := s.client.Generate(ctx, provider.Request{
		MIMEType: mimeType,
		Audio:    audio,
		Prompt:   prompt,
		Schema:   provider.SchemaBlockArray,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailed, err)
	}

	blocks, err := parseBlocks(text, lines)
	if err != nil {
		s.logger.Warnw("Rejected synchronization response",
			"error", err,
			"response", provider.TruncateString(text, 200),
		)
		return nil, err
	}

	s.logIrregularities(blocks, len(lines))
	return blocks, nil
}

// creates the prompt for synchronization; lines are embedded verbatim
func (s *Synchronizer) buildPrompt(lines []string) (string, error) {
	var encoded bytes.Buffer
	enc := json.NewEncoder(&encoded)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lines); err != nil {
		return "", fmt.Errorf("failed to encode lyrics: %w", err)
	}

	var sb strings.Builder

	sb.WriteString("You are an expert audio synchronization tool that creates precise SRT subtitles for songs. ")
	sb.WriteString("You will receive an audio file and a JSON array of lyric lines that were already transcribed. ")
	sb.WriteString("Listen carefully and assign a start and end timestamp to EACH line.\n\n")
	sb.WriteString("CRITICAL OUTPUT RULES:\n")
	sb.WriteString("1. USE THE PROVIDED TEXT: Use the exact text of each array item. Do not change, correct or merge it. Your only task is to find its timing.\n")
	sb.WriteString("2. JSON FORMAT: The output MUST be a JSON array of objects and nothing else.\n")
	sb.WriteString("3. OBJECT STRUCTURE: Each object has\n")
	sb.WriteString("   - id: sequential subtitle number starting at 1\n")
	sb.WriteString("   - startTime: start timestamp in HH:MM:SS,mmm format\n")
	sb.WriteString("   - endTime: end timestamp in HH:MM:SS,mmm format\n")
	sb.WriteString("   - text: the lyric line exactly as provided\n")
	sb.WriteString("4. TIMESTAMP FORMAT: Strictly HH:MM:SS,mmm including hours, minutes, seconds and milliseconds, even when hours are zero. Correct: 00:00:42,547. Incorrect: 00:42,547.\n")
	sb.WriteString("5. PRECISION: startTime marks the EXACT moment the line starts being sung and endTime the EXACT moment it ends. Gaps between subtitles are allowed and expected.\n")
	sb.WriteString("6. MISSING LINES: If a line cannot be located in the audio, omit it from the output. Never guess a timestamp.\n")
	sb.WriteString("7. SEQUENTIAL IDS: ids must be sequential over the emitted objects, even when some input lines are omitted.\n")

	if s.options.Prompt != "" {
		sb.WriteString("\n")
		sb.WriteString(s.options.Prompt)
		sb.WriteString("\n")
	}

	sb.WriteString("\nLyrics to synchronize:\n")
	sb.Write(encoded.Bytes())
	sb.WriteString("\nAnalyze the audio and return the JSON array of subtitle blocks following ALL of these rules.")

	return sb.String(), nil
}

// parses the collaborator text strictly as an array of complete blocks and
// checks every text against the input lines
func parseBlocks(text string, lines []string) ([]subtitle.Block, error) {
	cleaned := provider.CleanJSONResponse(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrFormatInvalid)
	}

	var raw []rawBlock
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormatInvalid, err)
	}

	if len(raw) == 0 {
		return nil, ErrEmpty
	}

	matcher := newLineMatcher(lines)
	blocks := make([]subtitle.Block, 0, len(raw))

	for i, rb := range raw {
		if rb.ID == nil || rb.StartTime == nil || rb.EndTime == nil || rb.Text == nil {
			return nil, fmt.Errorf("%w: block %d is missing a required field", ErrFormatInvalid, i)
		}

		id := *rb.ID
		if id != math.Trunc(id) || math.Abs(id) > math.MaxInt32 {
			return nil, fmt.Errorf("%w: block %d has non-integer id %v", ErrFormatInvalid, i, id)
		}

		line, ok := matcher.match(*rb.Text)
		if !ok {
			return nil, fmt.Errorf("%w: block %d text %q is not one of the input lines",
				ErrFormatInvalid, i, provider.TruncateString(*rb.Text, 80))
		}

		blocks = append(blocks, subtitle.Block{
			ID:        int(id),
			StartTime: *rb.StartTime,
			EndTime:   *rb.EndTime,
			Text:      line,
		})
	}

	return blocks, nil
}

// the renderer tolerates these, they are only worth a log line
func (s *Synchronizer) logIrregularities(blocks []subtitle.Block, inputLines int) {
	seen := make(map[int]bool, len(blocks))
	for _, b := range blocks {
		if seen[b.ID] {
			s.logger.Warnw("Duplicate subtitle id", "id", b.ID)
		}
		seen[b.ID] = true

		start, errStart := subtitle.ParseTimestamp(b.StartTime)
		end, errEnd := subtitle.ParseTimestamp(b.EndTime)
		switch {
		case errStart != nil || errEnd != nil:
			s.logger.Warnw("Unparseable timestamp",
				"id", b.ID,
				"start", b.StartTime,
				"end", b.EndTime,
			)
		case end < start:
			s.logger.Warnw("Subtitle ends before it starts",
				"id", b.ID,
				"start", b.StartTime,
				"end", b.EndTime,
			)
		}
	}

	if omitted := inputLines - len(blocks); omitted > 0 {
		s.logger.Infow("Some lines were not located in the audio", "omitted", omitted)
	}
}

// resolves a returned text to the exact input line it stands for
type lineMatcher struct {
	exact map[string]bool
	loose map[string]string
}

func newLineMatcher(lines []string) *lineMatcher {
	m := &lineMatcher{
		exact: make(map[string]bool, len(lines)),
		loose: make(map[string]string, len(lines)),
	}
	for _, line := range lines {
		m.exact[line] = true
		key := looseKey(line)
		if _, ok := m.loose[key]; !ok {
			m.loose[key] = line
		}
	}
	return m
}

// whitespace and Unicode composition differences are accepted; the input
// line is returned so the output text stays verbatim
func (m *lineMatcher) match(text string) (string, bool) {
	if m.exact[text] {
		return text, true
	}
	line, ok := m.loose[looseKey(text)]
	return line, ok
}

func looseKey(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
