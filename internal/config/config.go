// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/rcliao/vouchbot/internal/model"
)

// ErrMissingToken is returned by Validate when no bot token is configured.
var ErrMissingToken = errors.New("DISCORD_TOKEN is missing in environment variables")

// Config holds every environment-supplied setting.
type Config struct {
	Token         string `env:"DISCORD_TOKEN"`
	ApplicationID string `env:"APPLICATION_ID"`

	StoreBackend string `env:"VOUCH_STORE" envDefault:"json"`
	DataPath     string `env:"VOUCH_DATA" envDefault:"vouchData.json"`

	ErrorLog   string `env:"VOUCH_ERROR_LOG" envDefault:"error.log"`
	LogLevel   string `env:"VOUCH_LOG_LEVEL" envDefault:"info"`
	LogJournal bool   `env:"VOUCH_LOG_JOURNAL" envDefault:"false"`

	Cap              int           `env:"VOUCH_CAP" envDefault:"50"`
	ScanLimit        int           `env:"VOUCH_SCAN_LIMIT" envDefault:"1000"`
	PageSize         int           `env:"VOUCH_PAGE_SIZE" envDefault:"100"`
	PageInterval     time.Duration `env:"VOUCH_PAGE_INTERVAL" envDefault:"1s"`
	MutationInterval time.Duration `env:"VOUCH_MUTATION_INTERVAL" envDefault:"500ms"`
	Prefix           string        `env:"VOUCH_PREFIX" envDefault:"/"`
	ScanOnStartup    bool          `env:"VOUCH_SCAN_ON_STARTUP" envDefault:"true"`
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	if err := c.check(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) check() error {
	if c.Cap <= 0 {
		return fmt.Errorf("VOUCH_CAP must be positive, got %d", c.Cap)
	}
	if c.ScanLimit <= 0 {
		return fmt.Errorf("VOUCH_SCAN_LIMIT must be positive, got %d", c.ScanLimit)
	}
	if c.PageSize <= 0 || c.PageSize > 100 {
		return fmt.Errorf("VOUCH_PAGE_SIZE must be within 1..100, got %d", c.PageSize)
	}
	if c.PageInterval < 0 || c.MutationInterval < 0 {
		return errors.New("pacing intervals must not be negative")
	}
	return nil
}

// Validate checks the settings required to connect to the platform.
func (c Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// Ladder returns the tier ladder in effect.
func (c Config) Ladder() model.Ladder {
	return model.DefaultLadder
}
