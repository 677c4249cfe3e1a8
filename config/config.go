package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds everything read from the environment. Required values abort
// startup; optional values carry their defaults in the struct tags.
type Config struct {
	// BotToken is the Telegram bot API token.
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`

	// DataAPIURL is the GraphQL endpoint of the data API holding
	// subscribers and the collection schedule.
	DataAPIURL string `envconfig:"DATA_API_URL" required:"true"`

	// DataAPISecret is sent as the admin secret header on every request.
	DataAPISecret string `envconfig:"DATA_API_SECRET" required:"true"`

	// GeocoderURL overrides the Nominatim endpoint, e.g. to point at a
	// caching proxy.
	GeocoderURL string `envconfig:"GEOCODER_URL" default:"https://nominatim.openstreetmap.org"`

	// NotifyTime is the local wall-clock time ("HH:MM") the daily
	// notification run fires at.
	NotifyTime string `envconfig:"NOTIFY_TIME" default:"16:00"`

	// RefreshTime is the local wall-clock time ("HH:MM") the collection
	// schedule is re-fetched at, well before the default notify time.
	RefreshTime string `envconfig:"CALENDAR_REFRESH_TIME" default:"03:30"`

	// Timezone the notify time is interpreted in.
	Timezone string `envconfig:"TIMEZONE" default:"Europe/Berlin"`

	// Workers bounds how many subscribers are processed in parallel
	// during a run.
	Workers int `envconfig:"WORKERS" default:"4"`

	// DispatchTimeout bounds a single message send so one stuck chat
	// cannot stall the whole run.
	DispatchTimeout time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"10s"`

	// GeocodeTTL is how long a successful resolution stays cached.
	// Addresses rarely move.
	GeocodeTTL time.Duration `envconfig:"GEOCODE_CACHE_TTL" default:"720h"`

	// GeocodeNegativeTTL is how long a failed resolution is remembered
	// before the upstream is asked again.
	GeocodeNegativeTTL time.Duration `envconfig:"GEOCODE_NEGATIVE_TTL" default:"12h"`
}

func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if _, _, err := c.NotifyAt(); err != nil {
		return nil, err
	}
	if _, _, err := c.RefreshAt(); err != nil {
		return nil, err
	}
	if _, err := c.Location(); err != nil {
		return nil, err
	}
	if c.Workers < 1 {
		return nil, fmt.Errorf("WORKERS must be at least 1, got %d", c.Workers)
	}

	return &c, nil
}

// NotifyAt parses NotifyTime into hour and minute.
func (c *Config) NotifyAt() (hour, minute int, err error) {
	return parseClock("NOTIFY_TIME", c.NotifyTime)
}

// RefreshAt parses RefreshTime into hour and minute.
func (c *Config) RefreshAt() (hour, minute int, err error) {
	return parseClock("CALENDAR_REFRESH_TIME", c.RefreshTime)
}

func parseClock(name, value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%s must be HH:MM, got %q", name, value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%s must be HH:MM, got %q", name, value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%s must be HH:MM, got %q", name, value)
	}
	return hour, minute, nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
