package workflow

import (
	"context"
	"strings"
	"sync"

	"github.com/mgpai22/letra/internal/audio"
	"github.com/mgpai22/letra/internal/logging"
	"github.com/mgpai22/letra/internal/subtitle"
)

type Transcriber interface {
	Transcribe(ctx context.Context, mimeType string, audio []byte) ([]string, error)
}

type Synchronizer interface {
	Synchronize(
		ctx context.Context,
		mimeType string,
		audio []byte,
		lines []string,
	) ([]subtitle.Block, error)
}

// Machine drives one audio file from selection to a rendered SRT. At most
// one AI request is outstanding; calls made meanwhile fail with ErrBusy.
type Machine struct {
	transcriber  Transcriber
	synchronizer Synchronizer
	logger       *logging.Logger

	mu           sync.Mutex
	state        State
	gen          uint64
	onTransition func(from, to State)
}

func New(t Transcriber, s Synchronizer, logger *logging.Logger) *Machine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Machine{
		transcriber:  t,
		synchronizer: s,
		logger:       logger,
		state:        Idle{},
	}
}

// OnTransition registers fn to run after every state change. fn runs
// outside the machine lock and may call Snapshot.
func (m *Machine) OnTransition(fn func(from, to State)) {
	m.mu.Lock()
	m.onTransition = fn
	m.mu.Unlock()
}

func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SelectAsset makes asset the current audio and resets everything else.
// A nil asset clears the selection. The previous asset is released.
func (m *Machine) SelectAsset(asset *audio.Asset) error {
	m.mu.Lock()
	if IsBusy(m.state) {
		m.mu.Unlock()
		return ErrBusy
	}
	old := AssetOf(m.state)
	from, to, hook := m.swapLocked(Idle{Asset: asset})
	m.mu.Unlock()

	if old != asset {
		m.release(old)
	}
	m.notify(hook, from, to)
	return nil
}

// StartOver discards the asset, lines and result.
func (m *Machine) StartOver() error {
	return m.SelectAsset(nil)
}

// StartTranscription asks the transcriber for lyrics. On failure the
// machine returns to Idle with the asset still selected.
func (m *Machine) StartTranscription(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	idle, ok := m.state.(Idle)
	switch {
	case IsBusy(m.state):
		m.mu.Unlock()
		return nil, ErrBusy
	case !ok:
		m.mu.Unlock()
		return nil, ErrGuardViolation
	case idle.Asset == nil:
		m.mu.Unlock()
		return nil, ErrNoAsset
	}
	asset := idle.Asset
	from, to, hook := m.swapLocked(Transcribing{Asset: asset})
	gen := m.gen
	m.mu.Unlock()
	m.notify(hook, from, to)

	m.logger.Infow("transcribing lyrics",
		"file", asset.Name,
		"mime_type", asset.MIMEType,
		"size_bytes", asset.Size(),
	)

	lines, err := m.transcriber.Transcribe(ctx, asset.MIMEType, asset.Data)

	var next State
	if err != nil {
		m.logger.Warnw("transcription failed", "file", asset.Name, "error", err)
		next = Idle{Asset: asset, Err: err}
	} else {
		m.logger.Infow("transcription complete", "file", asset.Name, "lines", len(lines))
		next = Editing{Asset: asset, Lines: append([]string(nil), lines...)}
	}

	if !m.complete(gen, next) {
		return nil, ErrAbandoned
	}
	if err != nil {
		return nil, err
	}
	return append([]string(nil), lines...), nil
}

// ImportLines skips transcription and starts editing with lyrics the user
// already has.
func (m *Machine) ImportLines(lines []string) error {
	m.mu.Lock()
	idle, ok := m.state.(Idle)
	switch {
	case IsBusy(m.state):
		m.mu.Unlock()
		return ErrBusy
	case !ok:
		m.mu.Unlock()
		return ErrGuardViolation
	case idle.Asset == nil:
		m.mu.Unlock()
		return ErrNoAsset
	}
	from, to, hook := m.swapLocked(Editing{
		Asset: idle.Asset,
		Lines: append([]string(nil), lines...),
	})
	m.mu.Unlock()
	m.notify(hook, from, to)
	return nil
}

// EditLines replaces the whole line sequence. Any error from a previous
// sync attempt stays attached.
func (m *Machine) EditLines(lines []string) error {
	m.mu.Lock()
	editing, ok := m.state.(Editing)
	switch {
	case IsBusy(m.state):
		m.mu.Unlock()
		return ErrBusy
	case !ok:
		m.mu.Unlock()
		return ErrGuardViolation
	}
	from, to, hook := m.swapLocked(Editing{
		Asset: editing.Asset,
		Lines: append([]string(nil), lines...),
		Err:   editing.Err,
	})
	m.mu.Unlock()
	m.notify(hook, from, to)
	return nil
}

// EditText replaces the lines with text split on newlines, one line each.
func (m *Machine) EditText(text string) error {
	return m.EditLines(SplitText(text))
}

// StartSync aligns the current lines against the audio and renders the
// SRT. On failure the machine returns to Editing with the lines intact.
func (m *Machine) StartSync(ctx context.Context) (string, error) {
	m.mu.Lock()
	editing, ok := m.state.(Editing)
	switch {
	case IsBusy(m.state):
		m.mu.Unlock()
		return "", ErrBusy
	case !ok:
		m.mu.Unlock()
		return "", ErrGuardViolation
	case editing.Asset == nil:
		m.mu.Unlock()
		return "", ErrNoAsset
	case !HasLyrics(editing.Lines):
		m.mu.Unlock()
		return "", ErrNoLyrics
	}
	asset, lines := editing.Asset, editing.Lines
	from, to, hook := m.swapLocked(Syncing{Asset: asset, Lines: lines})
	gen := m.gen
	m.mu.Unlock()
	m.notify(hook, from, to)

	m.logger.Infow("synchronizing lyrics",
		"file", asset.Name,
		"lines", len(lines),
	)

	blocks, err := m.synchronizer.Synchronize(ctx, asset.MIMEType, asset.Data, lines)

	var srt string
	if err == nil {
		srt = subtitle.RenderSRT(blocks)
		if srt == "" {
			err = ErrRenderEmpty
		}
	}

	var next State
	if err != nil {
		m.logger.Warnw("synchronization failed", "file", asset.Name, "error", err)
		next = Editing{Asset: asset, Lines: lines, Err: err}
	} else {
		m.logger.Infow("synchronization complete", "file", asset.Name, "blocks", len(blocks))
		next = Done{
			Asset:  asset,
			Lines:  lines,
			Blocks: subtitle.SortedBlocks(blocks),
			SRT:    srt,
		}
	}

	if !m.complete(gen, next) {
		return "", ErrAbandoned
	}
	if err != nil {
		return "", err
	}
	return srt, nil
}

// Close releases the asset and returns the machine to an empty Idle. A
// request still in flight finishes but its result is discarded.
func (m *Machine) Close() error {
	m.mu.Lock()
	old := AssetOf(m.state)
	from, to, hook := m.swapLocked(Idle{})
	m.mu.Unlock()

	m.notify(hook, from, to)
	if old == nil {
		return nil
	}
	return old.Close()
}

// complete installs the outcome of a request unless the machine was torn
// down while it ran.
func (m *Machine) complete(gen uint64, next State) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.logger.Debugw("discarding result of abandoned request", "phase", next.Phase())
		return false
	}
	from, to, hook := m.swapLocked(next)
	m.mu.Unlock()
	m.notify(hook, from, to)
	return true
}

func (m *Machine) swapLocked(next State) (State, State, func(from, to State)) {
	from := m.state
	m.state = next
	m.gen++
	return from, next, m.onTransition
}

func (m *Machine) notify(hook func(from, to State), from, to State) {
	m.logger.Debugw("workflow transition", "from", from.Phase(), "to", to.Phase())
	if hook != nil {
		hook(from, to)
	}
}

func (m *Machine) release(asset *audio.Asset) {
	if asset == nil {
		return
	}
	if err := asset.Close(); err != nil {
		m.logger.Warnw("failed to release audio", "file", asset.Name, "error", err)
	}
}

// SplitText turns edited text into lines; each newline starts a new line.
func SplitText(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

// HasLyrics reports whether any line has non-whitespace content.
func HasLyrics(lines []string) bool {
	return strings.TrimSpace(strings.Join(lines, "")) != ""
}
