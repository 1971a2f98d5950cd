package app

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the bridge.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// WhatsApp Cloud API
	WhatsAppToken         string `envconfig:"WHATSAPP_TOKEN" required:"true"`
	WhatsAppPhoneNumberID string `envconfig:"WHATSAPP_PHONE_NUMBER_ID" required:"true"`
	VerifyToken           string `envconfig:"VERIFY_TOKEN" required:"true"`
	AppSecret             string `envconfig:"APP_SECRET" default:""` // empty disables payload signature verification
	GraphAPIBaseURL       string `envconfig:"GRAPH_API_BASE_URL" default:""`

	// Transcription backend
	TranscriptionServiceURL string        `envconfig:"TRANSCRIPTION_SERVICE_URL" required:"true"`
	PollInterval            time.Duration `envconfig:"POLL_INTERVAL" default:"3s"`
	PollMaxAttempts         int           `envconfig:"POLL_MAX_ATTEMPTS" default:"20"`

	// Confirmation reply tokens
	ConfirmYesToken string `envconfig:"CONFIRM_YES_TOKEN" default:"Y"`
	ConfirmNoToken  string `envconfig:"CONFIRM_NO_TOKEN" default:"N"`

	// Persistence
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Observability
	SentryDSN      string `envconfig:"SENTRY_DSN" default:""`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// LoadConfig reads configuration from the environment, loading a .env file
// first when one exists.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.PollMaxAttempts <= 0 {
		return Config{}, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive, got %d", cfg.PollMaxAttempts)
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("POLL_INTERVAL must be positive, got %v", cfg.PollInterval)
	}

	return cfg, nil
}

// HandlerTimeout bounds one message's end-to-end processing: the full
// polling budget plus headroom for the media download and outbound sends.
// Derived so raising POLL_INTERVAL or POLL_MAX_ATTEMPTS never cuts
// polling short.
func (c Config) HandlerTimeout() time.Duration {
	return c.PollInterval*time.Duration(c.PollMaxAttempts) + 30*time.Second
}
