package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/mgpai22/letra/internal/workflow"
)

const defaultEditor = "vi"

type retryAction int

const (
	actionRetry retryAction = iota
	actionEdit
	actionQuit
)

func isInteractive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stderr)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// editLines opens lines in the user's editor, one per line, and returns the
// saved result.
func editLines(ctx context.Context, editor string, lines []string) ([]string, error) {
	tmp, err := os.CreateTemp("", "letra-lyrics-*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to create lyrics file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(linesToText(lines)); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write lyrics file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write lyrics file: %w", err)
	}

	name, args := editorCommand(editor, path)
	logger.Debugw("Opening editor", "command", name, "file", path)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("editor %s failed: %w", name, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read edited lyrics: %w", err)
	}

	edited := textToLines(string(data))
	if !workflow.HasLyrics(edited) {
		return nil, fmt.Errorf("edited lyrics are empty")
	}
	logger.Infow("Lyrics edited", "lines", len(edited))
	return edited, nil
}

// editorCommand splits an editor setting such as "code --wait" and appends
// the file to edit.
func editorCommand(editor, path string) (string, []string) {
	fields := strings.Fields(editor)
	if len(fields) == 0 {
		fields = []string{defaultEditor}
	}
	return fields[0], append(fields[1:], path)
}

// promptRetry asks what to do after a failed synchronization.
func promptRetry(in *bufio.Reader, out io.Writer) (retryAction, error) {
	for {
		fmt.Fprint(out, "[e]dit lyrics and retry, [r]etry, [q]uit: ")
		answer, err := in.ReadString('\n')
		if err != nil && answer == "" {
			return actionQuit, err
		}

		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "e", "edit":
			return actionEdit, nil
		case "r", "retry", "":
			return actionRetry, nil
		case "q", "quit":
			return actionQuit, nil
		}
		if err != nil {
			return actionQuit, err
		}
	}
}
