package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/letra/internal/config"
	"github.com/mgpai22/letra/internal/logging"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "letra",
	Short: "AI-powered synchronized lyrics for songs",
	Long: `Letra turns a song into a synchronized SubRip (.srt) subtitle file.

It transcribes the lyrics with an AI model, lets you correct them, then
asks the model to align every line with the audio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)
		if cmd.Annotations["skipConfigLoad"] == "true" {
			return nil
		}
		return loadConfig(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/letra/config.toml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
	rootCmd.PersistentFlags().
		StringP("language", "l", "", "Language sung in the audio (e.g., en, pt, es)")
	rootCmd.PersistentFlags().
		StringP("provider", "p", "", "AI provider: gemini or openai")
	rootCmd.PersistentFlags().
		String("model", "", "Model name (defaults to the provider's audio model)")
	rootCmd.PersistentFlags().
		StringP("api-key", "k", "", "API key (or set GEMINI_API_KEY / OPENAI_API_KEY)")
}

// loadConfig reads the config file and environment, then lets flags win.
func loadConfig(cmd *cobra.Command) error {
	loaded, resolved, exists, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("provider"); strings.TrimSpace(v) != "" {
		loaded.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v, _ := flags.GetString("model"); strings.TrimSpace(v) != "" {
		loaded.Model = strings.TrimSpace(v)
	}
	if v, _ := flags.GetString("language"); strings.TrimSpace(v) != "" {
		loaded.Language = strings.TrimSpace(v)
	}
	if v, _ := flags.GetString("api-key"); strings.TrimSpace(v) != "" {
		if loaded.Provider == "openai" {
			loaded.OpenAIAPIKey = strings.TrimSpace(v)
		} else {
			loaded.APIKey = strings.TrimSpace(v)
		}
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger.Debugw("Loaded configuration",
		"path", resolved,
		"exists", exists,
		"provider", loaded.Provider,
	)
	cfg = loaded
	return nil
}
