package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	GatewayBaseURL  string `env:"GATEWAY_BASE_URL,required"`
	GatewayAPIKey   string `env:"GATEWAY_API_KEY,required"`
	GatewayTimeoutS int    `env:"GATEWAY_TIMEOUT_S" envDefault:"10"`

	// WebhookCallbackURL is handed to the aggregator on every collection
	// request so it knows where to push confirmations.
	WebhookCallbackURL string `env:"WEBHOOK_CALLBACK_URL" envDefault:"http://app:8080/webhook"`

	// WebhookSecret is optional. When empty the service runs in reduced-trust
	// mode and accepts unsigned webhooks; main logs a loud warning about it.
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// AutoConfirmDwellS is how long a pending wave payment must sit before
	// the temporal fallback may presume success.
	AutoConfirmDwellS int `env:"AUTO_CONFIRM_DWELL_S" envDefault:"180"`
	SweepIntervalS    int `env:"SWEEP_INTERVAL_S" envDefault:"60"`
	SweepBatchSize    int `env:"SWEEP_BATCH_SIZE" envDefault:"50"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutS) * time.Second
}

func (c *Config) AutoConfirmDwell() time.Duration {
	return time.Duration(c.AutoConfirmDwellS) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalS) * time.Second
}
