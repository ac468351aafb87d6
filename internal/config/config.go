package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/matheus3301/shiftsync/internal/geo"
	"github.com/matheus3301/shiftsync/internal/profile"
)

// Location is an optional fixed viewer position used for distance labels.
type Location struct {
	Latitude  float64 `toml:"latitude" env:"LATITUDE" validate:"gte=-90,lte=90"`
	Longitude float64 `toml:"longitude" env:"LONGITUDE" validate:"gte=-180,lte=180"`
}

// Config represents ~/.shiftsync/config.toml. Every field can be overridden
// by a SHIFTSYNC_* environment variable.
type Config struct {
	Profile   string    `toml:"profile" env:"PROFILE" validate:"required,profile"`
	Role      string    `toml:"role" env:"ROLE" validate:"required,oneof=worker operator"`
	ViewerID  string    `toml:"viewer_id" env:"VIEWER_ID"`
	RemoteDir string    `toml:"remote_dir" env:"REMOTE_DIR"`
	Timezone  string    `toml:"timezone" env:"TIMEZONE" validate:"omitempty,timezone"`
	OfferTTL  Duration  `toml:"offer_ttl" env:"OFFER_TTL"`
	LogLevel  string    `toml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Location  *Location `toml:"location" envPrefix:"LOCATION_" validate:"omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("24h").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

const envPrefix = "SHIFTSYNC_"

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Profile:  "main",
		Role:     "worker",
		OfferTTL: Duration{24 * time.Hour},
		LogLevel: "info",
	}
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("profile", func(fl validator.FieldLevel) bool {
		return profile.ValidateName(fl.Field().String()) == nil
	})
}

// Resolve builds the effective configuration: defaults, then the file at
// path when it exists, then SHIFTSYNC_* environment variables. The result
// is validated.
func Resolve(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.OfferTTL.Duration < 0 {
		return fmt.Errorf("invalid config: offer_ttl must not be negative")
	}
	return nil
}

// TimeLocation loads the configured timezone. An empty timezone is the
// system's local zone.
func (c *Config) TimeLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Origin returns the configured viewer position, or nil.
func (c *Config) Origin() *geo.Coordinates {
	if c.Location == nil {
		return nil
	}
	return &geo.Coordinates{Lat: c.Location.Latitude, Lng: c.Location.Longitude}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
