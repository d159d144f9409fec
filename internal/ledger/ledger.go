// Package ledger is the capacity ledger: the single source of truth for how
// many tradeable units a trader owns and how many are committed to open
// orders and positions. All mutations run as row-locked transactions so
// commands touching the same trader serialize.
package ledger

import (
	"math"

	"github.com/goldpack/exchange-core/internal/config"
	"github.com/goldpack/exchange-core/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service exposes reserve/release/reconcile over the trader ledger.
type Service struct {
	db  *Database
	cfg config.Exchange
}

// NewService creates a ledger service with the given database connection.
func NewService(gormDB *gorm.DB, cfg config.Exchange) *Service {
	return &Service{
		db:  NewDatabase(gormDB),
		cfg: cfg,
	}
}

// Reserve commits amount units of the trader's capacity. The boolean result
// distinguishes "capacity exhausted" from actual failures.
func (s *Service) Reserve(traderID, amount int64) (bool, error) {
	ok, err := s.db.Reserve(traderID, amount)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Debug().
			Int64("trader_id", traderID).
			Int64("amount", amount).
			Msg("capacity reservation rejected")
	}
	return ok, nil
}

// Release returns amount units to the trader, clamped at zero reserved.
func (s *Service) Release(traderID, amount int64) error {
	return s.db.Release(traderID, amount)
}

// SpreadReservation computes the capacity units reserved for one advance
// order leg from its worst-case loss:
//
//	ceil(amount * unitSize * (close-open) * leverage / exchangeRate)
//
// The amount is caller-supplied, so the multiplication chain is overflow
// checked; on overflow the result saturates to MaxInt64, which no capacity
// check can satisfy.
func (s *Service) SpreadReservation(amount, openPrice, closePrice int64, buyerLeg bool) int64 {
	leverage := int64(SellerLegLeverage)
	if buyerLeg {
		leverage = BuyerLegLeverage
	}

	loss, ok := mulInt64(amount, s.cfg.UnitSize)
	if ok {
		loss, ok = mulInt64(loss, closePrice-openPrice)
	}
	if ok {
		loss, ok = mulInt64(loss, leverage)
	}
	if !ok || loss > math.MaxInt64-(s.cfg.ExchangeRate-1) {
		return math.MaxInt64
	}

	// Integer ceiling division.
	return (loss + s.cfg.ExchangeRate - 1) / s.cfg.ExchangeRate
}

// mulInt64 multiplies two non-negative values, reporting overflow.
func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a {
		return 0, false
	}
	return product, true
}

// Reconcile reduces the trader's reserved capacity down to actual open
// exposure after a match: the hedged portion min(totalSold, totalBought)
// across all positions is released.
func (s *Service) Reconcile(traderID int64) error {
	tx := s.db.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := ReconcileIn(tx, traderID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// ReconcileIn runs the reconciliation inside an existing transaction, so the
// matching sweep can apply it atomically with the position it just created.
func ReconcileIn(tx *gorm.DB, traderID int64) error {
	sold, bought, err := matchedTotals(tx, traderID)
	if err != nil {
		return err
	}

	hedged := sold
	if bought < hedged {
		hedged = bought
	}
	if hedged == 0 {
		return nil
	}

	return releaseIn(tx, traderID, hedged)
}

// RegisterTrader creates a trader ledger row.
func (s *Service) RegisterTrader(trader *types.Trader) error {
	return s.db.CreateTrader(trader)
}

// GetTrader fetches a trader, or nil when unknown.
func (s *Service) GetTrader(traderID int64) (*types.Trader, error) {
	return s.db.GetTrader(traderID)
}

// GetName returns the trader's display name for notification templates.
func (s *Service) GetName(traderID int64) (string, error) {
	trader, err := s.db.GetTrader(traderID)
	if err != nil {
		return "", err
	}
	if trader == nil {
		return "", ErrTraderNotFound
	}
	return trader.Username, nil
}
