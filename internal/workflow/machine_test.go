package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/mgpai22/letra/internal/audio"
	"github.com/mgpai22/letra/internal/subtitle"
	"github.com/mgpai22/letra/internal/synchronize"
	"github.com/mgpai22/letra/internal/transcribe"
)

type fakeTranscriber struct {
	mu    sync.Mutex
	lines []string
	err   error
	calls int
	// when set, Transcribe blocks until release is closed
	started chan struct{}
	release chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, mimeType string, data []byte) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	return f.lines, f.err
}

type fakeSynchronizer struct {
	mu        sync.Mutex
	blocks    []subtitle.Block
	err       error
	calls     int
	lastLines []string
	started   chan struct{}
	release   chan struct{}
}

func (f *fakeSynchronizer) Synchronize(
	ctx context.Context,
	mimeType string,
	data []byte,
	lines []string,
) ([]subtitle.Block, error) {
	f.mu.Lock()
	f.calls++
	f.lastLines = append([]string(nil), lines...)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	return f.blocks, f.err
}

// newAsset builds an asset backed by a scratch directory so release can be
// observed through the filesystem.
func newAsset(t *testing.T, name string) *audio.Asset {
	t.Helper()
	asset, err := audio.FromBytes(context.Background(), name, []byte("ID3 fake audio"), audio.LoadOptions{})
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	t.Cleanup(func() { _ = asset.Close() })
	return asset
}

func released(asset *audio.Asset) bool {
	_, err := os.Stat(filepath.Dir(asset.Path))
	return os.IsNotExist(err)
}

var scenarioABlocks = []subtitle.Block{
	{ID: 1, StartTime: "1:02,500", EndTime: "1:05,000", Text: "Hello"},
	{ID: 2, StartTime: "00:01:06,000", EndTime: "00:01:08,250", Text: "World"},
}

const scenarioASRT = "1\r\n00:01:02,500 --> 00:01:05,000\r\nHello\r\n\r\n" +
	"2\r\n00:01:06,000 --> 00:01:08,250\r\nWorld\r\n\r\n"

// TestFullWorkflow verifies the happy path from selection to a rendered SRT.
func TestFullWorkflow(t *testing.T) {
	tr := &fakeTranscriber{lines: []string{"Hello", "World"}}
	sy := &fakeSynchronizer{blocks: scenarioABlocks}
	m := New(tr, sy, nil)

	var phases []Phase
	m.OnTransition(func(from, to State) {
		phases = append(phases, to.Phase())
	})

	asset := newAsset(t, "song.mp3")
	if err := m.SelectAsset(asset); err != nil {
		t.Fatalf("SelectAsset: %v", err)
	}

	lines, err := m.StartTranscription(context.Background())
	if err != nil {
		t.Fatalf("StartTranscription: %v", err)
	}
	if !reflect.DeepEqual(lines, []string{"Hello", "World"}) {
		t.Errorf("lines = %v", lines)
	}

	srt, err := m.StartSync(context.Background())
	if err != nil {
		t.Fatalf("StartSync: %v", err)
	}
	if srt != scenarioASRT {
		t.Errorf("srt = %q, want %q", srt, scenarioASRT)
	}

	done, ok := m.Snapshot().(Done)
	if !ok {
		t.Fatalf("state = %T, want Done", m.Snapshot())
	}
	if done.SRT != scenarioASRT || done.Asset != asset {
		t.Errorf("done = %+v", done)
	}

	want := []Phase{PhaseIdle, PhaseTranscribing, PhaseEditing, PhaseSyncing, PhaseDone}
	if !reflect.DeepEqual(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}

// TestSyncEmptyReturnsToEditing verifies lines survive a sync that yields nothing.
func TestSyncEmptyReturnsToEditing(t *testing.T) {
	sy := &fakeSynchronizer{err: synchronize.ErrEmpty}
	m := New(&fakeTranscriber{}, sy, nil)

	if err := m.SelectAsset(newAsset(t, "song.mp3")); err != nil {
		t.Fatal(err)
	}
	original := []string{"Hello", "World"}
	if err := m.ImportLines(original); err != nil {
		t.Fatal(err)
	}

	_, err := m.StartSync(context.Background())
	if !errors.Is(err, synchronize.ErrEmpty) {
		t.Fatalf("err = %v, want synchronize.ErrEmpty", err)
	}

	editing, ok := m.Snapshot().(Editing)
	if !ok {
		t.Fatalf("state = %T, want Editing", m.Snapshot())
	}
	if !reflect.DeepEqual(editing.Lines, original) {
		t.Errorf("lines = %v, want %v", editing.Lines, original)
	}
	if !errors.Is(editing.Err, synchronize.ErrEmpty) {
		t.Errorf("state err = %v", editing.Err)
	}
}

// TestTranscriptionFailureKeepsAsset verifies a retry needs no re-upload.
func TestTranscriptionFailureKeepsAsset(t *testing.T) {
	tr := &fakeTranscriber{err: transcribe.ErrFormatInvalid}
	m := New(tr, &fakeSynchronizer{}, nil)
	asset := newAsset(t, "song.mp3")
	_ = m.SelectAsset(asset)

	if _, err := m.StartTranscription(context.Background()); !errors.Is(err, transcribe.ErrFormatInvalid) {
		t.Fatalf("err = %v, want ErrFormatInvalid", err)
	}

	idle, ok := m.Snapshot().(Idle)
	if !ok {
		t.Fatalf("state = %T, want Idle", m.Snapshot())
	}
	if idle.Asset != asset {
		t.Error("asset was not retained after failure")
	}
	if !errors.Is(idle.Err, transcribe.ErrFormatInvalid) {
		t.Errorf("state err = %v", idle.Err)
	}
	if released(asset) {
		t.Error("asset released after a failed transcription")
	}

	tr.err = nil
	tr.lines = []string{"again"}
	if _, err := m.StartTranscription(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if tr.calls != 2 {
		t.Errorf("calls = %d, want 2", tr.calls)
	}
	if ErrOf(m.Snapshot()) != nil {
		t.Error("error should clear once a request is issued")
	}
}

// TestSelectAssetResetsEverything verifies a new file discards prior work.
func TestSelectAssetResetsEverything(t *testing.T) {
	m := New(&fakeTranscriber{lines: []string{"Hello", "World"}}, &fakeSynchronizer{blocks: scenarioABlocks}, nil)
	first := newAsset(t, "first.mp3")
	_ = m.SelectAsset(first)
	if _, err := m.StartTranscription(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StartSync(context.Background()); err != nil {
		t.Fatal(err)
	}

	second := newAsset(t, "second.mp3")
	if err := m.SelectAsset(second); err != nil {
		t.Fatalf("SelectAsset: %v", err)
	}

	idle, ok := m.Snapshot().(Idle)
	if !ok {
		t.Fatalf("state = %T, want Idle", m.Snapshot())
	}
	if idle.Asset != second || idle.Err != nil {
		t.Errorf("idle = %+v", idle)
	}
	if LinesOf(idle) != nil {
		t.Error("lines carried over")
	}
	if !released(first) {
		t.Error("previous asset was not released")
	}
	if released(second) {
		t.Error("new asset released")
	}
}

// TestStartOverReleasesAsset verifies the full reset from Done.
func TestStartOverReleasesAsset(t *testing.T) {
	m := New(&fakeTranscriber{}, &fakeSynchronizer{blocks: scenarioABlocks}, nil)
	asset := newAsset(t, "song.mp3")
	_ = m.SelectAsset(asset)
	_ = m.ImportLines([]string{"Hello", "World"})
	if _, err := m.StartSync(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := m.StartOver(); err != nil {
		t.Fatalf("StartOver: %v", err)
	}
	if st, ok := m.Snapshot().(Idle); !ok || st.Asset != nil {
		t.Errorf("state = %#v, want empty Idle", m.Snapshot())
	}
	if !released(asset) {
		t.Error("asset not released")
	}
}

// TestGuardsDoNotCallCollaborators verifies failed guards leave state alone.
func TestGuardsDoNotCallCollaborators(t *testing.T) {
	tr := &fakeTranscriber{}
	sy := &fakeSynchronizer{}
	m := New(tr, sy, nil)

	if _, err := m.StartTranscription(context.Background()); !errors.Is(err, ErrNoAsset) {
		t.Errorf("no asset: err = %v", err)
	}
	if err := m.ImportLines([]string{"x"}); !errors.Is(err, ErrNoAsset) {
		t.Errorf("import without asset: err = %v", err)
	}
	if _, err := m.StartSync(context.Background()); !errors.Is(err, ErrGuardViolation) {
		t.Errorf("sync from idle: err = %v", err)
	}
	if err := m.EditLines([]string{"x"}); !errors.Is(err, ErrGuardViolation) {
		t.Errorf("edit from idle: err = %v", err)
	}

	_ = m.SelectAsset(newAsset(t, "song.mp3"))
	_ = m.ImportLines([]string{"", "   ", "\t"})
	before := m.Snapshot()

	if _, err := m.StartSync(context.Background()); !errors.Is(err, ErrNoLyrics) {
		t.Errorf("blank lines: err = %v", err)
	}
	if !errors.Is(ErrNoLyrics, ErrGuardViolation) {
		t.Error("ErrNoLyrics should be a guard violation")
	}
	if !reflect.DeepEqual(m.Snapshot(), before) {
		t.Errorf("state changed after guard failure: %#v", m.Snapshot())
	}
	if tr.calls != 0 || sy.calls != 0 {
		t.Errorf("collaborators called: transcribe=%d sync=%d", tr.calls, sy.calls)
	}
}

// TestBusyRejectsOtherActions verifies calls made while a request is in
// flight fail without queueing.
func TestBusyRejectsOtherActions(t *testing.T) {
	tr := &fakeTranscriber{
		lines:   []string{"Hello"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := New(tr, &fakeSynchronizer{}, nil)
	asset := newAsset(t, "song.mp3")
	_ = m.SelectAsset(asset)

	errc := make(chan error, 1)
	go func() {
		_, err := m.StartTranscription(context.Background())
		errc <- err
	}()
	<-tr.started

	if _, ok := m.Snapshot().(Transcribing); !ok {
		t.Fatalf("state = %T, want Transcribing", m.Snapshot())
	}
	if err := m.SelectAsset(newAsset(t, "other.mp3")); !errors.Is(err, ErrBusy) {
		t.Errorf("SelectAsset: err = %v, want ErrBusy", err)
	}
	if err := m.StartOver(); !errors.Is(err, ErrBusy) {
		t.Errorf("StartOver: err = %v, want ErrBusy", err)
	}
	if _, err := m.StartTranscription(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second StartTranscription: err = %v, want ErrBusy", err)
	}
	if err := m.EditText("x"); !errors.Is(err, ErrBusy) {
		t.Errorf("EditText: err = %v, want ErrBusy", err)
	}
	if !errors.Is(ErrBusy, ErrGuardViolation) {
		t.Error("ErrBusy should be a guard violation")
	}

	close(tr.release)
	if err := <-errc; err != nil {
		t.Fatalf("StartTranscription: %v", err)
	}
	if tr.calls != 1 {
		t.Errorf("calls = %d, want 1", tr.calls)
	}
	if _, ok := m.Snapshot().(Editing); !ok {
		t.Errorf("state = %T, want Editing", m.Snapshot())
	}
}

// TestCloseDiscardsInflightResult verifies teardown wins over a late reply.
func TestCloseDiscardsInflightResult(t *testing.T) {
	sy := &fakeSynchronizer{
		blocks:  scenarioABlocks,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := New(&fakeTranscriber{}, sy, nil)
	asset := newAsset(t, "song.mp3")
	_ = m.SelectAsset(asset)
	_ = m.ImportLines([]string{"Hello", "World"})

	errc := make(chan error, 1)
	go func() {
		_, err := m.StartSync(context.Background())
		errc <- err
	}()
	<-sy.started

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	close(sy.release)

	if err := <-errc; !errors.Is(err, ErrAbandoned) {
		t.Errorf("err = %v, want ErrAbandoned", err)
	}
	if st, ok := m.Snapshot().(Idle); !ok || st.Asset != nil {
		t.Errorf("state = %#v, want empty Idle", m.Snapshot())
	}
	if !released(asset) {
		t.Error("asset not released by Close")
	}
}

func TestEditTextSplitsLines(t *testing.T) {
	m := New(&fakeTranscriber{lines: []string{"a"}}, &fakeSynchronizer{}, nil)
	_ = m.SelectAsset(newAsset(t, "song.mp3"))
	if _, err := m.StartTranscription(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := m.EditText("First line\r\nSecond line\n\nFourth"); err != nil {
		t.Fatalf("EditText: %v", err)
	}
	want := []string{"First line", "Second line", "", "Fourth"}
	if got := LinesOf(m.Snapshot()); !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestEditKeepsSyncError(t *testing.T) {
	sy := &fakeSynchronizer{err: synchronize.ErrFormatInvalid}
	m := New(&fakeTranscriber{}, sy, nil)
	_ = m.SelectAsset(newAsset(t, "song.mp3"))
	_ = m.ImportLines([]string{"Hello"})
	_, _ = m.StartSync(context.Background())

	if err := m.EditLines([]string{"Hello", "again"}); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(ErrOf(m.Snapshot()), synchronize.ErrFormatInvalid) {
		t.Errorf("err = %v", ErrOf(m.Snapshot()))
	}

	sy.err = nil
	sy.blocks = []subtitle.Block{{ID: 1, StartTime: "00:00:01,000", EndTime: "00:00:02,000", Text: "Hello"}}
	if _, err := m.StartSync(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !reflect.DeepEqual(sy.lastLines, []string{"Hello", "again"}) {
		t.Errorf("sync saw %v", sy.lastLines)
	}
}

func TestSnapshotLinesAreCopies(t *testing.T) {
	m := New(&fakeTranscriber{}, &fakeSynchronizer{}, nil)
	_ = m.SelectAsset(newAsset(t, "song.mp3"))
	input := []string{"Hello"}
	_ = m.ImportLines(input)
	input[0] = "mutated"

	lines := LinesOf(m.Snapshot())
	if lines[0] != "Hello" {
		t.Errorf("machine shares caller slice: %q", lines[0])
	}
	lines[0] = "also mutated"
	if LinesOf(m.Snapshot())[0] != "Hello" {
		t.Error("LinesOf returned shared slice")
	}
}
