package config

import (
	"errors"
	"fmt"

	"github.com/mgpai22/letra/internal/provider"
	"github.com/mgpai22/letra/internal/subtitle"
)

// Validate ensures the configuration is usable. API keys are checked
// separately by ResolveAPIKey since some commands never call the AI.
func (c *Config) Validate() error {
	if _, err := provider.ParseProvider(c.Provider); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if _, ok := subtitle.ParseFormat(c.Format); !ok {
		return fmt.Errorf("format %q is not supported: use srt, vtt or ass", c.Format)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return errors.New("server.request_timeout_seconds must be positive")
	}
	if c.Server.SessionTTLMinutes <= 0 {
		return errors.New("server.session_ttl_minutes must be positive")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	return nil
}
