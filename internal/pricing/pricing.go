// Package pricing holds the externally maintained price band the core
// validates order prices against. The core only ever reads snapshots; the
// band itself is refreshed on a fixed interval from a market-data source.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Snapshot is a read-only view of the current price band.
type Snapshot struct {
	LowerBound int64 `json:"lower_bound"`
	UpperBound int64 `json:"upper_bound"`
	// BasePrefix completes 3-digit shorthand prices.
	BasePrefix int64 `json:"base_prefix"`
}

// Contains reports whether price falls inside the band.
func (s Snapshot) Contains(price int64) bool {
	return price >= s.LowerBound && price <= s.UpperBound
}

// Source supplies fresh band values.
type Source interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// Provider caches the latest snapshot behind a read lock and refreshes it
// periodically from its source.
type Provider struct {
	mu          sync.RWMutex
	snap        Snapshot
	source      Source
	refreshRate time.Duration
}

func NewProvider(source Source, refreshRate time.Duration) *Provider {
	return &Provider{
		source:      source,
		refreshRate: refreshRate,
	}
}

// Snapshot returns the current band.
func (p *Provider) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Refresh pulls a fresh snapshot from the source immediately.
func (p *Provider) Refresh(ctx context.Context) error {
	snap, err := p.source.Fetch(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()
	return nil
}

// Start runs the refresh loop until the context is cancelled.
func (p *Provider) Start(ctx context.Context) {
	logger := log.With().Str("component", "price_band_refresher").Logger()
	logger.Info().Msg("starting price band refresher")

	if err := p.Refresh(ctx); err != nil {
		logger.Error().Err(err).Msg("initial price band refresh failed")
	}

	ticker := time.NewTicker(p.refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down price band refresher")
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				logger.Error().Err(err).Msg("failed to refresh price band")
				continue
			}
			snap := p.Snapshot()
			logger.Debug().
				Int64("lower_bound", snap.LowerBound).
				Int64("upper_bound", snap.UpperBound).
				Msg("price band refreshed")
		}
	}
}

// BoundRateSource derives the band from an externally set reference price:
// the band is the reference plus/minus a fixed bound rate, and the shorthand
// prefix is the reference price with its last three digits dropped.
type BoundRateSource struct {
	mu        sync.RWMutex
	price     int64
	boundRate int64
}

func NewBoundRateSource(boundRate int64) *BoundRateSource {
	return &BoundRateSource{boundRate: boundRate}
}

// SetPrice updates the reference price the band is derived from.
func (s *BoundRateSource) SetPrice(price int64) {
	s.mu.Lock()
	s.price = price
	s.mu.Unlock()
}

func (s *BoundRateSource) Fetch(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		LowerBound: s.price - s.boundRate,
		UpperBound: s.price + s.boundRate,
		BasePrefix: s.price / 1000,
	}, nil
}
