package internal

import (
	"strings"
	"time"
)

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	SigningKey string        `env:"SIGNING_KEY,required=true"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,required=true"`
	EventCode  string        `env:"EVENT_CODE,required=true"`
	BaseURL    string        `env:"BASE_URL,required=true"`

	Cooldown             time.Duration `env:"COOLDOWN,required=true"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,required=true"`
	BackfillWindow       int           `env:"BACKFILL_WINDOW,required=true"`
	SubscriberBufferSize int           `env:"SUBSCRIBER_BUFFER_SIZE,required=true"`
	AdmissionBufferSize  int           `env:"ADMISSION_BUFFER_SIZE,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	// Empty RedisURL keeps the cooldown in process memory.
	RedisURL string `env:"REDIS_URL"`

	// Empty SMTPHost logs the magic links instead of mailing them.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS,required=true"`

	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,required=true"`
}

// Origins splits the comma-separated ALLOWED_ORIGINS value.
func (c Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
