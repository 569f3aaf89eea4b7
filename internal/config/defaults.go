package config

const (
	defaultProvider              = "gemini"
	defaultFormat                = "srt"
	defaultServerAddr            = "127.0.0.1:8080"
	defaultMaxUploadMB           = 50
	defaultRequestTimeoutSeconds = 300
	defaultSessionTTLMinutes     = 120
)
