package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mgpai22/letra/internal/audio"
	"github.com/mgpai22/letra/internal/provider"
	"github.com/mgpai22/letra/internal/subtitle"
	"github.com/mgpai22/letra/internal/synchronize"
	"github.com/mgpai22/letra/internal/transcribe"
	"github.com/mgpai22/letra/internal/workflow"
)

// newClient builds the AI client for the loaded configuration.
func newClient(ctx context.Context) (provider.Client, error) {
	apiKey, err := cfg.ResolveAPIKey()
	if err != nil {
		return nil, err
	}

	client, err := provider.Factory(ctx, cfg.ProviderName(), apiKey, provider.Options{
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.ProviderName(), err)
	}
	if named, ok := client.(interface{ Model() string }); ok {
		logger.Debugw("Using model", "provider", cfg.ProviderName(), "model", named.Model())
	}
	return client, nil
}

// newMachineFactory returns a constructor for machines sharing one client.
func newMachineFactory(ctx context.Context) (func() *workflow.Machine, error) {
	client, err := newClient(ctx)
	if err != nil {
		return nil, err
	}

	transcriber := transcribe.New(client, transcribe.Options{Language: cfg.Language}, logger)
	synchronizer := synchronize.New(client, synchronize.Options{}, logger)

	return func() *workflow.Machine {
		return workflow.New(transcriber, synchronizer, logger)
	}, nil
}

// selectMedia loads mediaPath and hands it to m.
func selectMedia(ctx context.Context, m *workflow.Machine, mediaPath string) (*audio.Asset, error) {
	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", mediaPath)
	}
	if !audio.IsMediaFile(mediaPath) {
		return nil, fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(mediaPath))
	}

	opts := cfg.LoadOptions(mediaPath)
	if opts.Transcode {
		logger.Infow("Transcoding audio", "input", mediaPath)
	}

	asset, err := audio.Load(ctx, mediaPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load audio: %w", err)
	}
	if err := m.SelectAsset(asset); err != nil {
		_ = asset.Close()
		return nil, err
	}

	fields := []any{
		"file", asset.Name,
		"mime_type", asset.MIMEType,
		"size_bytes", asset.Size(),
	}
	if d, err := asset.Duration(); err == nil {
		fields = append(fields, "duration", d.String())
	} else {
		logger.Debugw("Could not probe duration", "error", err)
	}
	logger.Infow("Audio selected", fields...)

	return asset, nil
}

// resolveFormat picks the subtitle format from the flag, the output path
// extension, then the configured default.
func resolveFormat(flagValue, outputPath string) (subtitle.Format, error) {
	if flagValue != "" {
		format, ok := subtitle.ParseFormat(flagValue)
		if !ok {
			return "", fmt.Errorf("unsupported format %q: use srt, vtt, or ass", flagValue)
		}
		return format, nil
	}
	if ext := strings.TrimPrefix(filepath.Ext(outputPath), "."); ext != "" {
		if format, ok := subtitle.ParseFormat(ext); ok {
			return format, nil
		}
	}
	format, ok := subtitle.ParseFormat(cfg.Format)
	if !ok {
		return subtitle.FormatSRT, nil
	}
	return format, nil
}

// defaultOutputPath places the subtitle next to the media file.
func defaultOutputPath(mediaPath string, format subtitle.Format) string {
	return filepath.Join(filepath.Dir(mediaPath), subtitle.OutputName(filepath.Base(mediaPath), format))
}

// writeSubtitles writes the finished blocks. SRT output is the exact text
// the workflow rendered.
func writeSubtitles(done workflow.Done, format subtitle.Format, outputPath string) error {
	if format == subtitle.FormatSRT {
		if dir := filepath.Dir(outputPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := os.WriteFile(outputPath, []byte(done.SRT), 0644); err != nil {
			return fmt.Errorf("failed to write subtitles: %w", err)
		}
		return nil
	}

	writer, err := subtitle.NewWriter(format)
	if err != nil {
		return fmt.Errorf("failed to create subtitle writer: %w", err)
	}
	if err := writer.Write(done.Blocks, outputPath); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}
	return nil
}

// userError turns a workflow failure into a message, keeping the cause for
// verbose runs.
func userError(err error) error {
	if verbose {
		return fmt.Errorf("%s (%w)", workflow.Describe(err), err)
	}
	return errors.New(workflow.Describe(err))
}
