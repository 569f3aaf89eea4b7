package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/letra/internal/subtitle"
	"github.com/mgpai22/letra/internal/workflow"
)

var syncCmd = &cobra.Command{
	Use:   "sync [audio_file]",
	Short: "Synchronize existing lyrics with a song",
	Long: `Align lyrics you already have with the audio and write subtitles.

The lyrics file is plain text with one line per subtitle, or an existing
.srt file whose text is reused.

Examples:
  letra sync song.mp3 --lyrics lyrics.txt
  letra sync song.mp3 --lyrics old.srt -o song.srt
  letra sync song.mp3 --lyrics lyrics.txt --format vtt`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().String("lyrics", "", "Lyrics file (.txt one line per subtitle, or .srt)")
	syncCmd.Flags().StringP("format", "f", "", "Output subtitle format (srt, vtt, ass)")
	_ = syncCmd.MarkFlagRequired("lyrics")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mediaPath := args[0]
	lyricsPath, _ := cmd.Flags().GetString("lyrics")
	formatStr, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	lines, err := readLyricsFile(lyricsPath)
	if err != nil {
		return err
	}
	if !workflow.HasLyrics(lines) {
		return fmt.Errorf("lyrics file %s has no text", lyricsPath)
	}

	format, err := resolveFormat(formatStr, outputPath)
	if err != nil {
		return err
	}
	if outputPath == "" {
		outputPath = defaultOutputPath(mediaPath, format)
	}

	newMachine, err := newMachineFactory(ctx)
	if err != nil {
		return err
	}
	m := newMachine()
	defer m.Close()

	if _, err := selectMedia(ctx, m, mediaPath); err != nil {
		return err
	}
	if err := m.ImportLines(lines); err != nil {
		return userError(err)
	}

	if _, err := m.StartSync(ctx); err != nil {
		return userError(err)
	}

	return finish(cmd, m, format, outputPath)
}

// finish writes the result of a Done machine and prints a summary.
func finish(cmd *cobra.Command, m *workflow.Machine, format subtitle.Format, outputPath string) error {
	done, ok := m.Snapshot().(workflow.Done)
	if !ok {
		return fmt.Errorf("workflow ended in %s instead of done", m.Snapshot().Phase())
	}
	if err := writeSubtitles(done, format, outputPath); err != nil {
		return err
	}

	absOutput, _ := filepath.Abs(outputPath)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Subtitles generated successfully: %s\n", absOutput)
	fmt.Fprintf(out, "  Entries: %d of %d lines\n", len(done.Blocks), countLyrics(done.Lines))
	return nil
}

// readLyricsFile loads lines from a text file or the text of an SRT file.
func readLyricsFile(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".srt") {
		blocks, err := subtitle.ParseSRTFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read lyrics: %w", err)
		}
		return subtitle.Lines(blocks), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lyrics: %w", err)
	}
	return textToLines(strings.TrimPrefix(string(data), "\ufeff")), nil
}

// textToLines splits text into lines, ignoring the final newline of a file.
func textToLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\r")
	return workflow.SplitText(text)
}

func countLyrics(lines []string) int {
	n := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
