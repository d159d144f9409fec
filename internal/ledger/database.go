package ledger

import (
	"errors"
	"fmt"

	"github.com/goldpack/exchange-core/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateTrader registers a new ledger row.
func (d *Database) CreateTrader(trader *types.Trader) error {
	return d.db.Create(trader).Error
}

// GetTrader fetches a trader by id, or nil when none exists.
func (d *Database) GetTrader(traderID int64) (*types.Trader, error) {
	var trader types.Trader
	if err := d.db.Where("trader_id = ?", traderID).First(&trader).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trader, nil
}

// lockTrader reads a trader row under a row-level update lock inside tx.
func lockTrader(tx *gorm.DB, traderID int64) (*types.Trader, error) {
	var trader types.Trader
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("trader_id = ?", traderID).
		First(&trader).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTraderNotFound
		}
		return nil, fmt.Errorf("failed to lock trader row: %w", err)
	}
	return &trader, nil
}

// Reserve atomically checks available capacity and commits the reservation.
// Returns false with a nil error when capacity is exhausted. Negative
// amounts are rejected outright: they would pass the availability check and
// drive the reserved counter below zero.
func (d *Database) Reserve(traderID, amount int64) (bool, error) {
	if amount < 0 {
		return false, nil
	}

	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	trader, err := lockTrader(tx, traderID)
	if err != nil {
		tx.Rollback()
		return false, err
	}

	if trader.CapacityTotal-trader.CapacityReserved < amount {
		tx.Rollback()
		return false, nil
	}

	err = tx.Model(&types.Trader{}).
		Where("trader_id = ?", traderID).
		Update("capacity_reserved", trader.CapacityReserved+amount).Error
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("failed to update reservation: %w", err)
	}

	return true, tx.Commit().Error
}

// Release reduces the trader's reserved capacity, clamped at zero.
func (d *Database) Release(traderID, amount int64) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := releaseIn(tx, traderID, amount); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// releaseIn applies a clamped release inside an existing transaction.
func releaseIn(tx *gorm.DB, traderID, amount int64) error {
	trader, err := lockTrader(tx, traderID)
	if err != nil {
		return err
	}

	reserved := trader.CapacityReserved - amount
	if reserved < 0 {
		reserved = 0
	}

	err = tx.Model(&types.Trader{}).
		Where("trader_id = ?", traderID).
		Update("capacity_reserved", reserved).Error
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	return nil
}

// matchedTotals sums matched amounts for the trader across both position
// tables, split by the side they occupied.
func matchedTotals(tx *gorm.DB, traderID int64) (sold, bought int64, err error) {
	type sums struct {
		Sold   int64
		Bought int64
	}
	var simple, advance sums

	query := `
		SELECT
			COALESCE(SUM(CASE WHEN seller_id = ? THEN amount ELSE 0 END), 0) AS sold,
			COALESCE(SUM(CASE WHEN buyer_id = ? THEN amount ELSE 0 END), 0) AS bought
		FROM %s
		WHERE deleted_at IS NULL AND (seller_id = ? OR buyer_id = ?)`

	err = tx.Raw(fmt.Sprintf(query, "positions"), traderID, traderID, traderID, traderID).
		Scan(&simple).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum simple positions: %w", err)
	}

	err = tx.Raw(fmt.Sprintf(query, "advance_positions"), traderID, traderID, traderID, traderID).
		Scan(&advance).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum advance positions: %w", err)
	}

	return simple.Sold + advance.Sold, simple.Bought + advance.Bought, nil
}
