package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mgpai22/letra/internal/workflow"
)

var generateCmd = &cobra.Command{
	Use:   "generate [audio_file]",
	Short: "Generate synchronized lyric subtitles for a song",
	Long: `Generate synchronized subtitles for a song in one go.

The lyrics are transcribed, optionally opened in your editor for
corrections (--edit), then aligned with the audio. Each lyric line becomes
one subtitle. When synchronization fails in an interactive terminal you can
edit the lyrics and try again without transcribing twice.

Examples:
  letra generate song.mp3
  letra generate song.mp3 --edit
  letra generate song.flac --provider openai -o lyrics.srt
  letra generate song.mp3 --format vtt`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().
		BoolP("edit", "e", false, "Open the transcribed lyrics in $EDITOR before synchronizing")
	generateCmd.Flags().
		StringP("format", "f", "", "Output subtitle format (srt, vtt, ass)")
	generateCmd.Flags().
		Bool("no-retry", false, "Never prompt to retry after a synchronization failure")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mediaPath := args[0]
	edit, _ := cmd.Flags().GetBool("edit")
	noRetry, _ := cmd.Flags().GetBool("no-retry")
	formatStr, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	format, err := resolveFormat(formatStr, outputPath)
	if err != nil {
		return err
	}
	if outputPath == "" {
		outputPath = defaultOutputPath(mediaPath, format)
	}

	logger.Infow("Starting lyric subtitle generation",
		"input", mediaPath,
		"output", outputPath,
		"format", format,
		"provider", cfg.Provider,
	)

	newMachine, err := newMachineFactory(ctx)
	if err != nil {
		return err
	}
	m := newMachine()
	defer m.Close()

	if _, err := selectMedia(ctx, m, mediaPath); err != nil {
		return err
	}

	lines, err := m.StartTranscription(ctx)
	if err != nil {
		return userError(err)
	}

	if edit {
		if lines, err = editLines(ctx, cfg.Editor, lines); err != nil {
			return err
		}
		if err := m.EditLines(lines); err != nil {
			return userError(err)
		}
	}

	interactive := !noRetry && isInteractive()
	prompt := bufio.NewReader(os.Stdin)
	for {
		_, err := m.StartSync(ctx)
		if err == nil {
			break
		}
		if !interactive || errors.Is(err, workflow.ErrGuardViolation) {
			return userError(err)
		}

		fmt.Fprintln(cmd.ErrOrStderr(), workflow.Describe(err))
		action, perr := promptRetry(prompt, cmd.ErrOrStderr())
		if perr != nil {
			return userError(err)
		}

		switch action {
		case actionQuit:
			return userError(err)
		case actionEdit:
			edited, eerr := editLines(ctx, cfg.Editor, workflow.LinesOf(m.Snapshot()))
			if eerr != nil {
				return eerr
			}
			if err := m.EditLines(edited); err != nil {
				return userError(err)
			}
		case actionRetry:
		}
	}

	return finish(cmd, m, format, outputPath)
}

