// Package appconfig is the root configuration for the server and
// worker processes: YAML file plus environment-variable overrides via
// pkg/config's loader.
package appconfig

import (
	"runtime"
	"time"

	"github.com/RamfiAogusto/competitor-tracker/pkg/config"
)

// Config is the full set of tunables named in the enumerated
// configuration list: database connection, scheduling cadence,
// snapshot consolidation policy, render/enrich service endpoints, and
// resource caps.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	Worker   WorkerConfig   `yaml:"worker"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Render   RenderConfig   `yaml:"render"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Notify   NotifyConfig   `yaml:"notify"`
	Auth     AuthConfig     `yaml:"auth"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"DB_DSN"`
}

type HTTPConfig struct {
	Port          string `yaml:"port" env:"HTTP_PORT"`
	AllowedOrigin string `yaml:"allowed_origin" env:"HTTP_ALLOWED_ORIGIN"`
}

// WorkerConfig governs the scheduler's capture concurrency and cadence.
type WorkerConfig struct {
	Count            int `yaml:"worker_count" env:"WORKER_COUNT"`
	MinCheckInterval int `yaml:"min_check_interval" env:"MIN_CHECK_INTERVAL"`
	MaxCheckInterval int `yaml:"max_check_interval" env:"MAX_CHECK_INTERVAL"`
}

// SnapshotConfig governs the full/differential consolidation policy.
type SnapshotConfig struct {
	FullPeriod      int     `yaml:"full_period" env:"FULL_PERIOD"`
	FullIfDiffRatio float64 `yaml:"full_if_diff_ratio" env:"FULL_IF_DIFF_RATIO"`
	HTMLSizeCap     int     `yaml:"html_size_cap" env:"HTML_SIZE_CAP"`
}

// RenderConfig points at the outbound Renderer service.
type RenderConfig struct {
	ServiceURL  string `yaml:"service_url" env:"RENDER_SERVICE_URL"`
	AuthToken   string `yaml:"auth_token" env:"RENDER_AUTH_TOKEN"`
	TimeoutSecs int    `yaml:"render_timeout" env:"RENDER_TIMEOUT"`
	Retries     int    `yaml:"render_retries" env:"RENDER_RETRIES"`
	BackoffBase int    `yaml:"render_backoff_base" env:"RENDER_BACKOFF_BASE"`
}

// EnrichConfig points at the outbound Enricher service, or selects the
// direct-LLM enricher when ServiceURL is empty and LLMProvider is set.
type EnrichConfig struct {
	ServiceURL  string `yaml:"service_url" env:"ENRICH_SERVICE_URL"`
	AuthToken   string `yaml:"auth_token" env:"ENRICH_AUTH_TOKEN"`
	LLMProvider string `yaml:"llm_provider" env:"LLM_PROVIDER"`
	LLMModel    string `yaml:"llm_model" env:"LLM_MODEL"`
	LLMAPIKey   string `yaml:"llm_api_key" env:"LLM_API_KEY"`
}

// NotifyConfig configures the optional notifyfanout subscriber.
type NotifyConfig struct {
	TelegramBotToken  string `yaml:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChannelID string `yaml:"telegram_channel_id" env:"TELEGRAM_CHANNEL_ID"`
	WebhookURL        string `yaml:"webhook_url" env:"NOTIFY_WEBHOOK_URL"`
	SMTPHost          string `yaml:"smtp_host" env:"SMTP_HOST"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

// EventBufferPerSubscriber is the per-subscriber EventBus queue depth.
const EventBufferPerSubscriber = 1024

// Default returns a Config populated with every named default: worker
// count at 2×CPU, 5th snapshot full, 80% diff-ratio force-full
// threshold, 5-minute/24-hour check interval bounds, 60s render
// timeout with 5 retries and a 2s backoff base, and a 4 MiB HTML cap.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/tracker.db"},
		HTTP:     HTTPConfig{Port: "8080", AllowedOrigin: "http://localhost:3000"},
		Worker: WorkerConfig{
			Count:            2 * runtime.NumCPU(),
			MinCheckInterval: 300,
			MaxCheckInterval: 86400,
		},
		Snapshot: SnapshotConfig{
			FullPeriod:      5,
			FullIfDiffRatio: 0.8,
			HTMLSizeCap:     4 * 1024 * 1024,
		},
		Render: RenderConfig{
			TimeoutSecs: 60,
			Retries:     5,
			BackoffBase: 2,
		},
	}
}

// Load reads path (if it exists) over the defaults, then applies
// environment-variable overrides via pkg/config's `env`-tag loader.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := config.LoadOrDefault(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RenderTimeout returns the configured render timeout as a Duration.
func (c RenderConfig) RenderTimeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// BackoffBaseDuration returns the configured render backoff base as a Duration.
func (c RenderConfig) BackoffBaseDuration() time.Duration {
	return time.Duration(c.BackoffBase) * time.Second
}
