package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) TestLoadOverridesDefaults() {
	path := filepath.Join(s.T().TempDir(), "config.yaml")
	content := []byte(`
server:
  port: "9090"
exchange:
  unit_size: 1000
  join_window: 30s
`)
	s.Require().NoError(os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	s.Require().NoError(err)
	s.Equal("9090", cfg.Server.Port)
	s.Equal(int64(1000), cfg.Exchange.UnitSize)
	s.Equal(30*time.Second, cfg.Exchange.JoinWindow.Std())

	// Untouched fields keep their defaults.
	s.Equal(int64(2000000), cfg.Exchange.ExchangeRate)
	s.Equal(12, cfg.Exchange.DayCutoffHour)
}

func (s *ConfigTestSuite) TestLoadRejectsInvalidValues() {
	path := filepath.Join(s.T().TempDir(), "config.yaml")
	content := []byte(`
exchange:
  unit_size: -5
`)
	s.Require().NoError(os.WriteFile(path, content, 0o600))

	_, err := Load(path)
	s.Error(err)
}

func (s *ConfigTestSuite) TestLoadMissingFile() {
	_, err := Load(filepath.Join(s.T().TempDir(), "missing.yaml"))
	s.Error(err)
}

func (s *ConfigTestSuite) TestInTomorrowWindow() {
	cfg := DefaultExchange()
	day := func(hour, minute int) time.Time {
		return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
	}

	s.False(cfg.InTomorrowWindow(day(11, 29)))
	s.True(cfg.InTomorrowWindow(day(11, 30)))
	s.True(cfg.InTomorrowWindow(day(12, 0)))
	s.False(cfg.InTomorrowWindow(day(12, 30)))
	s.False(cfg.InTomorrowWindow(day(15, 0)))
}

func (s *ConfigTestSuite) TestTradingDayExpiry() {
	cfg := DefaultExchange()

	// Before the cutoff the order settles today.
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	expiry := cfg.TradingDayExpiry(created, false)
	s.True(expiry.Equal(time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)))

	// At or after the cutoff it rolls to tomorrow.
	created = time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	expiry = cfg.TradingDayExpiry(created, false)
	s.True(expiry.Equal(time.Date(2026, 3, 3, 12, 30, 0, 0, time.UTC)))

	// Tomorrow-dated orders roll regardless of the hour.
	created = time.Date(2026, 3, 2, 11, 45, 0, 0, time.UTC)
	expiry = cfg.TradingDayExpiry(created, true)
	s.True(expiry.Equal(time.Date(2026, 3, 3, 12, 30, 0, 0, time.UTC)))
}
