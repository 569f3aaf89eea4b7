package workflow

import (
	"github.com/mgpai22/letra/internal/audio"
	"github.com/mgpai22/letra/internal/subtitle"
)

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseTranscribing Phase = "transcribing"
	PhaseEditing      Phase = "editing"
	PhaseSyncing      Phase = "syncing"
	PhaseDone         Phase = "done"
)

// State is one of Idle, Transcribing, Editing, Syncing or Done. Values are
// never mutated after a transition; the machine swaps in a new one.
type State interface {
	Phase() Phase
	state()
}

type Idle struct {
	Asset *audio.Asset
	Err   error
}

type Transcribing struct {
	Asset *audio.Asset
}

type Editing struct {
	Asset *audio.Asset
	Lines []string
	Err   error
}

type Syncing struct {
	Asset *audio.Asset
	Lines []string
}

type Done struct {
	Asset  *audio.Asset
	Lines  []string
	Blocks []subtitle.Block
	SRT    string
}

func (Idle) Phase() Phase         { return PhaseIdle }
func (Transcribing) Phase() Phase { return PhaseTranscribing }
func (Editing) Phase() Phase      { return PhaseEditing }
func (Syncing) Phase() Phase      { return PhaseSyncing }
func (Done) Phase() Phase         { return PhaseDone }

func (Idle) state()         {}
func (Transcribing) state() {}
func (Editing) state()      {}
func (Syncing) state()      {}
func (Done) state()         {}

// IsBusy reports whether a request is outstanding in s.
func IsBusy(s State) bool {
	switch s.(type) {
	case Transcribing, Syncing:
		return true
	}
	return false
}

// AssetOf returns the asset carried by s, or nil.
func AssetOf(s State) *audio.Asset {
	switch st := s.(type) {
	case Idle:
		return st.Asset
	case Transcribing:
		return st.Asset
	case Editing:
		return st.Asset
	case Syncing:
		return st.Asset
	case Done:
		return st.Asset
	}
	return nil
}

// LinesOf returns a copy of the lyric lines carried by s.
func LinesOf(s State) []string {
	var lines []string
	switch st := s.(type) {
	case Editing:
		lines = st.Lines
	case Syncing:
		lines = st.Lines
	case Done:
		lines = st.Lines
	}
	if lines == nil {
		return nil
	}
	return append([]string(nil), lines...)
}

// ErrOf returns the last failure attached to s.
func ErrOf(s State) error {
	switch st := s.(type) {
	case Idle:
		return st.Err
	case Editing:
		return st.Err
	}
	return nil
}
