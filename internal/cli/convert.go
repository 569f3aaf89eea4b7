package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/letra/internal/audio"
)

var convertCmd = &cobra.Command{
	Use:   "convert [media_file]",
	Short: "Convert a song or video into audio the AI providers accept",
	Long: `Re-encode a song, or the soundtrack of a video, into mp3 or wav.

OpenAI only accepts mp3 and wav input. generate and sync convert on the
fly; use this command to keep the converted file.

Examples:
  letra convert song.flac
  letra convert clip.mp4 -o song.mp3
  letra convert song.m4a --format wav --sample-rate 16000 --channels 1`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"skipConfigLoad": "true"},
	RunE:        runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	defaults := audio.DefaultCompressionOptions()
	convertCmd.Flags().
		StringP("format", "f", defaults.Format, "Output audio format (mp3, wav)")
	convertCmd.Flags().
		IntP("sample-rate", "r", defaults.SampleRate, "Sample rate in Hz (e.g., 16000, 44100, 48000)")
	convertCmd.Flags().
		IntP("channels", "c", defaults.Channels, "Number of audio channels (1=mono, 2=stereo)")
	convertCmd.Flags().
		StringP("bitrate", "b", defaults.Bitrate, "Bitrate for mp3 output (e.g., 128k, 320k)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]

	format, _ := cmd.Flags().GetString("format")
	sampleRate, _ := cmd.Flags().GetInt("sample-rate")
	channels, _ := cmd.Flags().GetInt("channels")
	bitrate, _ := cmd.Flags().GetString("bitrate")
	outputPath, _ := cmd.Flags().GetString("output")

	format = strings.ToLower(strings.TrimSpace(format))
	if format != "mp3" && format != "wav" {
		return fmt.Errorf("invalid format %q: supported formats are mp3 and wav", format)
	}
	if !audio.IsMediaFile(mediaPath) {
		return fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(mediaPath))
	}

	if outputPath == "" {
		outputPath = convertedPath(mediaPath, format)
	}
	if filepath.Clean(outputPath) == filepath.Clean(mediaPath) {
		return fmt.Errorf("output %s would overwrite the input; pass --output", outputPath)
	}

	logger.Infow("Converting audio",
		"input", mediaPath,
		"output", outputPath,
		"format", format,
		"sample_rate", sampleRate,
		"channels", channels,
	)

	opts := audio.CompressionOptions{
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
		Bitrate:    bitrate,
	}
	if err := audio.CompressAudio(cmd.Context(), mediaPath, outputPath, opts); err != nil {
		return err
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Audio converted successfully: %s\n", absOutput)
	return nil
}

// convertedPath swaps the extension, adding a suffix when it would not change.
func convertedPath(mediaPath, format string) string {
	base := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath))
	if strings.EqualFold(filepath.Ext(mediaPath), "."+format) {
		return base + ".converted." + format
	}
	return base + "." + format
}
