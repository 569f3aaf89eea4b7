package cli

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/letra/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run an HTTP API that drives the same workflow per browser session:
upload audio, transcribe, edit the lines, synchronize and download the SRT.

Examples:
  letra serve
  letra serve --addr 0.0.0.0:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default from config, 127.0.0.1:8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	newMachine, err := newMachineFactory(ctx)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		NewMachine:     newMachine,
		LoadOptions:    cfg.LoadOptions,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		SessionTTL:     time.Duration(cfg.Server.SessionTTLMinutes) * time.Minute,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Logger:         logger,
	})

	logger.Infow("Starting server",
		"addr", addr,
		"provider", cfg.Provider,
		"max_upload_mb", cfg.Server.MaxUploadMB,
	)
	return srv.Run(ctx, addr)
}
