// Package appconf holds the stoplookup configuration: defaults, an optional
// YAML file and command line overrides, validated before use.
package appconf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultServer is the backend used when nothing else is configured.
const DefaultServer = "http://localhost:8000"

// DefaultIPLookupURL is an ip-api compatible endpoint used to approximate the
// user's position when no coordinates are configured.
const DefaultIPLookupURL = "http://ip-api.com/json/?fields=status,message,lat,lon"

// Config is the resolved application configuration.
type Config struct {
	Server      string        `yaml:"server" validate:"required,url"`
	Locate      bool          `yaml:"locate"`
	Latitude    *float64      `yaml:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64      `yaml:"longitude" validate:"omitempty,longitude"`
	IPLookupURL string        `yaml:"ip-lookup-url" validate:"omitempty,url"`
	RateLimit   float64       `yaml:"rate-limit" validate:"gte=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	MetricsAddr string        `yaml:"metrics-addr" validate:"omitempty,hostname_port"`
	Verbose     bool          `yaml:"verbose"`
	LogFormat   string        `yaml:"log-format" validate:"oneof=text json"`
}

// Default returns the configuration used before any file or flag is applied.
func Default() Config {
	return Config{
		Server:    DefaultServer,
		Locate:    true,
		LogFormat: "text",
	}
}

// HasCoordinates reports whether a fixed position is configured.
func (c Config) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current values.
func LoadFile(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration and returns a readable error listing
// every offending field.
func (c Config) Validate() error {
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return errors.New("invalid configuration: latitude and longitude must be set together")
	}

	v := validator.New()
	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", yamlName(fe.StructField()), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func yamlName(field string) string {
	switch field {
	case "IPLookupURL":
		return "ip-lookup-url"
	case "RateLimit":
		return "rate-limit"
	case "MetricsAddr":
		return "metrics-addr"
	case "LogFormat":
		return "log-format"
	default:
		return strings.ToLower(field)
	}
}
