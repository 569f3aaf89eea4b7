package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/mgpai22/letra/internal/audio"
	"github.com/mgpai22/letra/internal/provider"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains settings for `letra serve`.
type Server struct {
	Addr                  string `toml:"addr"`
	MaxUploadMB           int    `toml:"max_upload_mb"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	SessionTTLMinutes     int    `toml:"session_ttl_minutes"`
	// empty allows any origin
	CORSOrigins []string `toml:"cors_origins"`
}

// Config holds everything letra reads from disk and the environment.
type Config struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKey       string `toml:"api_key"`
	OpenAIAPIKey string `toml:"openai_api_key"`
	BaseURL      string `toml:"base_url"`
	Language     string `toml:"language"`
	Format       string `toml:"format"`
	Transcode    bool   `toml:"transcode"`
	Editor       string `toml:"editor"`
	Server       Server `toml:"server"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Provider: defaultProvider,
		Format:   defaultFormat,
		Server: Server{
			Addr:                  defaultServerAddr,
			MaxUploadMB:           defaultMaxUploadMB,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			SessionTTLMinutes:     defaultSessionTTLMinutes,
		},
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/letra/config.toml, falling back
// to ~/.config/letra/config.toml.
func DefaultConfigPath() (string, error) {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return expandPath(filepath.Join(base, "letra", "config.toml"))
	}
	return expandPath("~/.config/letra/config.toml")
}

// Load reads the config file at path (or the default location when path is
// empty), applies environment overrides and validates the result. A missing
// file is not an error; exists reports whether one was read.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	c := Default()

	resolved, exists, err = resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&c); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	c.applyEnv(os.LookupEnv)
	c.normalize()

	if err := c.Validate(); err != nil {
		return nil, "", false, err
	}

	return &c, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", false, err
		}
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}

	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if value, ok := lookup("LETRA_PROVIDER"); ok && strings.TrimSpace(value) != "" {
		c.Provider = value
	}
	if value, ok := lookup("LETRA_MODEL"); ok && strings.TrimSpace(value) != "" {
		c.Model = value
	}
	if value, ok := lookup("GEMINI_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.APIKey = value
	}
	if value, ok := lookup("OPENAI_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.OpenAIAPIKey = value
	}
	if c.Editor == "" {
		if value, ok := lookup("VISUAL"); ok && strings.TrimSpace(value) != "" {
			c.Editor = value
		} else if value, ok := lookup("EDITOR"); ok {
			c.Editor = value
		}
	}
}

func (c *Config) normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = defaultProvider
	}
	c.Model = strings.TrimSpace(c.Model)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.OpenAIAPIKey = strings.TrimSpace(c.OpenAIAPIKey)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.Language = strings.TrimSpace(c.Language)
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = defaultFormat
	}
	c.Editor = strings.TrimSpace(c.Editor)
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
}

// ProviderName returns the parsed provider.
func (c *Config) ProviderName() provider.Provider {
	p, err := provider.ParseProvider(c.Provider)
	if err != nil {
		return provider.ProviderGemini
	}
	return p
}

// ResolveAPIKey returns the key for the configured provider, or an error
// naming where it can be set.
func (c *Config) ResolveAPIKey() (string, error) {
	p := c.ProviderName()
	key := c.APIKey
	field := "api_key"
	if p == provider.ProviderOpenAI {
		key = c.OpenAIAPIKey
		field = "openai_api_key"
	}
	if key == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/letra/config.toml"
		}
		return "", fmt.Errorf(
			"%s is required for provider %s. Set %s or edit %s (create with 'letra config init')",
			field, p, provider.APIKeyEnv(p), defaultPath,
		)
	}
	return key, nil
}

// LoadOptions decides how a media file named name is prepared for the
// configured provider. OpenAI only takes mp3 or wav, so anything else is
// transcoded even when transcode is off.
func (c *Config) LoadOptions(name string) audio.LoadOptions {
	opts := audio.LoadOptions{Transcode: c.Transcode}
	if c.ProviderName() == provider.ProviderOpenAI {
		if _, err := provider.OpenAIAudioFormat(audio.DetectMIMEType(name, nil)); err != nil {
			opts.Transcode = true
		}
	}
	return opts
}

// MaxUploadBytes is the upload limit for the HTTP API.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// Encode renders c as TOML with secrets masked.
func (c *Config) Encode() (string, error) {
	masked := *c
	masked.APIKey = maskSecret(masked.APIKey)
	masked.OpenAIAPIKey = maskSecret(masked.OpenAIAPIKey)

	out, err := toml.Marshal(masked)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(out), nil
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// CreateSample writes the sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
