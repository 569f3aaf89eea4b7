package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mgpai22/letra/internal/audio"
	"github.com/mgpai22/letra/internal/logging"
	"github.com/mgpai22/letra/internal/workflow"
)

const (
	defaultRequestTimeout = 5 * time.Minute
	defaultSessionTTL     = 2 * time.Hour
	sweepInterval         = 5 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

type Options struct {
	// NewMachine builds the workflow for a new session.
	NewMachine func() *workflow.Machine
	// LoadOptions decides how an uploaded file is prepared.
	LoadOptions    func(name string) audio.LoadOptions
	MaxUploadBytes int64
	RequestTimeout time.Duration
	SessionTTL     time.Duration
	CORSOrigins    []string
	Logger         *logging.Logger
}

type Server struct {
	engine   *gin.Engine
	sessions *sessionStore
	opts     Options
	logger   *logging.Logger
}

func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.LoadOptions == nil {
		opts.LoadOptions = func(string) audio.LoadOptions { return audio.LoadOptions{} }
	}

	s := &Server{
		sessions: newSessionStore(),
		opts:     opts,
		logger:   opts.Logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(opts.Logger))
	engine.Use(MaxBodySize(opts.MaxUploadBytes))
	engine.Use(CORS(opts.CORSOrigins))
	s.registerRoutes(engine)
	s.engine = engine

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down and releases
// every session.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweepLoop(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Infow("HTTP server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.sessions.closeAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Infow("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.sessions.closeAll()
	return err
}

// Close releases every session without stopping a running listener.
func (s *Server) Close() {
	s.sessions.closeAll()
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.sessions.sweep(now, s.opts.SessionTTL); n > 0 {
				s.logger.Infow("Expired idle sessions", "count", n)
			}
		}
	}
}
