package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [audio_file]",
	Short: "Transcribe the lyrics of a song",
	Long: `Transcribe the lyrics of a song into plain text, one lyric line per line.

The text is printed to stdout unless --output is given. Edit it and pass it
to 'letra sync --lyrics' to produce synchronized subtitles.

Examples:
  letra transcribe song.mp3
  letra transcribe song.flac -o lyrics.txt --language pt`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	outputPath, _ := cmd.Flags().GetString("output")

	newMachine, err := newMachineFactory(ctx)
	if err != nil {
		return err
	}
	m := newMachine()
	defer m.Close()

	if _, err := selectMedia(ctx, m, args[0]); err != nil {
		return err
	}

	lines, err := m.StartTranscription(ctx)
	if err != nil {
		return userError(err)
	}

	text := linesToText(lines)
	if outputPath == "" {
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	}

	if err := os.WriteFile(outputPath, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write lyrics: %w", err)
	}
	logger.Infow("Lyrics written", "output", outputPath, "lines", len(lines))
	return nil
}

// linesToText joins lines with newlines and terminates the last one.
func linesToText(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
