package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// DSN is {publicToken}:{privateToken}@{host}:{port}/{providerId}
	DSN    string `env:"COURAGE_DSN"`
	Secure bool   `env:"COURAGE_SECURE"`

	// StateFile keeps the device id between runs
	StateFile string `env:"COURAGE_STATE_FILE,default=.courage.json"`

	InitialBackoff time.Duration `env:"COURAGE_INITIAL_BACKOFF,default=100ms"`
	MaxBackoff     time.Duration `env:"COURAGE_MAX_BACKOFF,default=5m"`
	PingInterval   time.Duration `env:"COURAGE_PING_INTERVAL,default=30s"`
	WriteTimeout   time.Duration `env:"COURAGE_WRITE_TIMEOUT,default=10s"`

	// MetricsAddr serves /ping and /metrics when set
	MetricsAddr string `env:"COURAGE_METRICS_ADDR"`
	DebugHTTP   bool   `env:"COURAGE_DEBUG_HTTP"`

	LogLevel string `env:"COURAGE_LOG_LEVEL,default=info"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
