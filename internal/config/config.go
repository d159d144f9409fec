package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Exchange holds the trading constants the core operates with.
type Exchange struct {
	// UnitSize is the notional size of one capacity unit.
	UnitSize int64 `yaml:"unit_size" validate:"gt=0"`
	// ExchangeRate converts notional loss into capacity units.
	ExchangeRate int64 `yaml:"exchange_rate" validate:"gt=0"`
	// JoinWindow is how long an order accepts reply-joins after creation.
	JoinWindow Duration `yaml:"join_window" validate:"gt=0"`
	// PriceBoundRate is the half-width of the daily price band.
	PriceBoundRate int64 `yaml:"price_bound_rate" validate:"gte=0"`

	// DayCutoff is the trading-day settlement cutoff, minutes from midnight.
	DayCutoffHour   int `yaml:"day_cutoff_hour" validate:"gte=0,lt=24"`
	DayCutoffMinute int `yaml:"day_cutoff_minute" validate:"gte=0,lt=60"`

	// Tomorrow-dated orders are only accepted inside this daily window.
	TomorrowWindowStartHour   int `yaml:"tomorrow_window_start_hour" validate:"gte=0,lt=24"`
	TomorrowWindowStartMinute int `yaml:"tomorrow_window_start_minute" validate:"gte=0,lt=60"`
	TomorrowWindowEndHour     int `yaml:"tomorrow_window_end_hour" validate:"gte=0,lt=24"`
	TomorrowWindowEndMinute   int `yaml:"tomorrow_window_end_minute" validate:"gte=0,lt=60"`
}

// Server holds the HTTP facade settings.
type Server struct {
	Port         string `yaml:"port" validate:"required"`
	JWTSecret    string `yaml:"jwt_secret" validate:"required"`
	DatabasePath string `yaml:"database_path" validate:"required"`
	// PriceRefreshInterval controls the price-band refresher loop.
	PriceRefreshInterval Duration `yaml:"price_refresh_interval" validate:"gt=0"`
}

// Config is the full application configuration.
type Config struct {
	Server   Server   `yaml:"server" validate:"required"`
	Exchange Exchange `yaml:"exchange" validate:"required"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server: Server{
			Port:                 "8080",
			JWTSecret:            "goldpack-secret-key",
			DatabasePath:         "exchange.db",
			PriceRefreshInterval: Duration(time.Minute),
		},
		Exchange: DefaultExchange(),
	}
}

// DefaultExchange returns the stock trading constants.
func DefaultExchange() Exchange {
	return Exchange{
		UnitSize:                  50000,
		ExchangeRate:              2000000,
		JoinWindow:                Duration(time.Minute),
		PriceBoundRate:            2000,
		DayCutoffHour:             12,
		DayCutoffMinute:           30,
		TomorrowWindowStartHour:   11,
		TomorrowWindowStartMinute: 30,
		TomorrowWindowEndHour:     12,
		TomorrowWindowEndMinute:   30,
	}
}

// Load reads and validates a YAML config file, falling back to defaults for
// zero-valued fields.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// InTomorrowWindow reports whether t falls inside the daily window during
// which tomorrow-dated orders may be submitted.
func (e Exchange) InTomorrowWindow(t time.Time) bool {
	minutes := t.Hour()*60 + t.Minute()
	start := e.TomorrowWindowStartHour*60 + e.TomorrowWindowStartMinute
	end := e.TomorrowWindowEndHour*60 + e.TomorrowWindowEndMinute
	return minutes >= start && minutes < end
}

// TradingDayExpiry computes the trading-day cutoff for an order created at t.
// Orders created at or after the cutoff, and tomorrow-dated orders, roll to
// the next day's cutoff.
func (e Exchange) TradingDayExpiry(t time.Time, extraDay bool) time.Time {
	afterCutoff := t.Hour() > e.DayCutoffHour ||
		(t.Hour() == e.DayCutoffHour && t.Minute() >= e.DayCutoffMinute)
	base := t
	if extraDay || afterCutoff {
		base = base.AddDate(0, 0, 1)
	}
	return time.Date(base.Year(), base.Month(), base.Day(),
		e.DayCutoffHour, e.DayCutoffMinute, 0, 0, t.Location())
}
