package workflow

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mgpai22/letra/internal/synchronize"
	"github.com/mgpai22/letra/internal/transcribe"
)

func TestDescribeDistinguishesClasses(t *testing.T) {
	errs := []error{
		ErrBusy,
		ErrNoAsset,
		ErrNoLyrics,
		ErrGuardViolation,
		fmt.Errorf("%w: %w", transcribe.ErrFailed, errors.New("quota exceeded")),
		transcribe.ErrFormatInvalid,
		transcribe.ErrEmpty,
		fmt.Errorf("%w: %w", synchronize.ErrFailed, errors.New("quota exceeded")),
		synchronize.ErrFormatInvalid,
		synchronize.ErrEmpty,
	}

	seen := make(map[string]error)
	for _, err := range errs {
		msg := Describe(err)
		if msg == "" {
			t.Errorf("Describe(%v) is empty", err)
		}
		if prev, ok := seen[msg]; ok {
			t.Errorf("Describe(%v) and Describe(%v) share message %q", prev, err, msg)
		}
		seen[msg] = err
	}
}

func TestDescribeCollaboratorCause(t *testing.T) {
	err := fmt.Errorf("%w: %w", synchronize.ErrFailed, errors.New("quota exceeded"))
	msg := Describe(err)
	if !strings.HasSuffix(msg, ": quota exceeded") {
		t.Errorf("Describe = %q", msg)
	}
	if Describe(nil) != "" {
		t.Error("Describe(nil) should be empty")
	}
}
