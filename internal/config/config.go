package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

const (
	StoreRedis = "redis"
	StoreBolt  = "bolt"
)

type Config struct {
	HTTPAddr string `env:"MAFIA_HTTP_ADDR" envDefault:":8080"`

	Store         string `env:"MAFIA_STORE"          envDefault:"redis"`
	RedisAddr     string `env:"MAFIA_REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"MAFIA_REDIS_PASSWORD"`
	RedisDB       int    `env:"MAFIA_REDIS_DB"       envDefault:"0"`
	BoltPath      string `env:"MAFIA_BOLT_PATH"      envDefault:"mafia.db"`

	DayDuration     time.Duration `env:"MAFIA_DAY_DURATION"     envDefault:"60s"`
	ExecuteDuration time.Duration `env:"MAFIA_EXECUTE_DURATION" envDefault:"15s"`
	NightDuration   time.Duration `env:"MAFIA_NIGHT_DURATION"   envDefault:"30s"`
	MorningDuration time.Duration `env:"MAFIA_MORNING_DURATION" envDefault:"10s"`

	// Empty disables the finished-game archive.
	ArchiveDSN string `env:"MAFIA_ARCHIVE_DSN"`

	LogLevel string `env:"MAFIA_LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"MAFIA_LOG_DEV"   envDefault:"false"`
}

// Load reads the optional dotenv files, then the environment. Variables
// already set in the environment win over the files.
func Load(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load dotenv: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var err error
	switch c.Store {
	case StoreRedis:
		if c.RedisAddr == "" {
			err = multierr.Append(err, errors.New("MAFIA_REDIS_ADDR is required for the redis store"))
		}
	case StoreBolt:
		if c.BoltPath == "" {
			err = multierr.Append(err, errors.New("MAFIA_BOLT_PATH is required for the bolt store"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown MAFIA_STORE %q", c.Store))
	}

	for name, d := range map[string]time.Duration{
		"MAFIA_DAY_DURATION":     c.DayDuration,
		"MAFIA_EXECUTE_DURATION": c.ExecuteDuration,
		"MAFIA_NIGHT_DURATION":   c.NightDuration,
		"MAFIA_MORNING_DURATION": c.MorningDuration,
	} {
		if d <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	return err
}
