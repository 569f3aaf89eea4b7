package workflow

import (
	"errors"
	"fmt"

	"github.com/mgpai22/letra/internal/audio"
	"github.com/mgpai22/letra/internal/synchronize"
	"github.com/mgpai22/letra/internal/transcribe"
)

var (
	ErrGuardViolation = errors.New("action not allowed in current state")
	ErrBusy           = fmt.Errorf("%w: a request is already in progress", ErrGuardViolation)
	ErrNoAsset        = fmt.Errorf("%w: no audio file selected", ErrGuardViolation)
	ErrNoLyrics       = fmt.Errorf("%w: there are no lyrics to synchronize", ErrGuardViolation)
	ErrAbandoned      = fmt.Errorf("%w: workflow was reset while the request ran", ErrGuardViolation)
	ErrRenderEmpty    = errors.New("rendered subtitles are empty")
)

// Describe maps an error from the machine to a message suitable for the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return "Please wait for the current request to finish."
	case errors.Is(err, ErrNoAsset):
		return "Please select an audio file first."
	case errors.Is(err, ErrAbandoned):
		return "The request finished after the workflow was reset; its result was discarded."
	case errors.Is(err, ErrNoLyrics):
		return "There are no lyrics to synchronize."
	case errors.Is(err, ErrGuardViolation):
		return "That action is not available right now."
	case errors.Is(err, audio.ErrUnsupported):
		return "That file is not a supported audio format."
	case errors.Is(err, audio.ErrEmpty):
		return "The selected audio file is empty."
	case errors.Is(err, transcribe.ErrEmpty):
		return "The AI could not transcribe any lyrics. The song may not have clear vocals."
	case errors.Is(err, transcribe.ErrFormatInvalid):
		return "The AI returned lyrics in an unexpected format. Please try again."
	case errors.Is(err, transcribe.ErrFailed):
		return "Transcription failed: " + rootCause(err)
	case errors.Is(err, synchronize.ErrEmpty):
		return "The AI returned no subtitle data. The song may not have clear vocals or the format is not supported."
	case errors.Is(err, synchronize.ErrFormatInvalid):
		return "The AI returned subtitles in an unexpected format. Please try again."
	case errors.Is(err, synchronize.ErrFailed):
		return "Synchronization failed: " + rootCause(err)
	case errors.Is(err, ErrRenderEmpty):
		return "The synchronized subtitles could not be rendered."
	}
	return "An unknown error occurred: " + err.Error()
}

// rootCause strips the sentinel prefix from a joined error.
func rootCause(err error) string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		if len(errs) > 1 {
			return errs[len(errs)-1].Error()
		}
	}
	return err.Error()
}
