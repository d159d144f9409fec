package matching

import (
	"errors"
	"fmt"

	"github.com/goldpack/exchange-core/internal/ledger"
	"github.com/goldpack/exchange-core/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// OpenOrders loads all simple orders in insertion order.
func (d *Database) OpenOrders() ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Order("id").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	return orders, nil
}

// OpenAdvanceOrders loads all advance orders in insertion order.
func (d *Database) OpenAdvanceOrders() ([]types.AdvanceOrder, error) {
	var orders []types.AdvanceOrder
	if err := d.db.Order("id").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to load advance orders: %w", err)
	}
	return orders, nil
}

// TraderName resolves a trader's display name.
func (d *Database) TraderName(traderID int64) (string, error) {
	var trader types.Trader
	if err := d.db.Where("trader_id = ?", traderID).First(&trader).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ledger.ErrTraderNotFound
		}
		return "", err
	}
	return trader.Username, nil
}

// ApplySimpleMatch commits one matched pair as a single transaction: the
// position row, both filled increments, and both traders' ledger
// reconciliations.
func (d *Database) ApplySimpleMatch(position *types.Position, buyerRowID, sellerRowID uint, buyerFilled, sellerFilled int64) error {
	return d.applyMatch(func(tx *gorm.DB) error {
		if err := tx.Create(position).Error; err != nil {
			return fmt.Errorf("failed to create position: %w", err)
		}
		if err := tx.Model(&types.Order{}).Where("id = ?", buyerRowID).
			Update("filled", buyerFilled).Error; err != nil {
			return fmt.Errorf("failed to update buyer fill: %w", err)
		}
		if err := tx.Model(&types.Order{}).Where("id = ?", sellerRowID).
			Update("filled", sellerFilled).Error; err != nil {
			return fmt.Errorf("failed to update seller fill: %w", err)
		}
		if err := ledger.ReconcileIn(tx, position.SellerID); err != nil {
			return fmt.Errorf("failed to reconcile seller: %w", err)
		}
		if err := ledger.ReconcileIn(tx, position.BuyerID); err != nil {
			return fmt.Errorf("failed to reconcile buyer: %w", err)
		}
		return nil
	})
}

// ApplyAdvanceMatch is ApplySimpleMatch for the advance tables.
func (d *Database) ApplyAdvanceMatch(position *types.AdvancePosition, buyerRowID, sellerRowID uint, buyerFilled, sellerFilled int64) error {
	return d.applyMatch(func(tx *gorm.DB) error {
		if err := tx.Create(position).Error; err != nil {
			return fmt.Errorf("failed to create advance position: %w", err)
		}
		if err := tx.Model(&types.AdvanceOrder{}).Where("id = ?", buyerRowID).
			Update("filled", buyerFilled).Error; err != nil {
			return fmt.Errorf("failed to update buyer fill: %w", err)
		}
		if err := tx.Model(&types.AdvanceOrder{}).Where("id = ?", sellerRowID).
			Update("filled", sellerFilled).Error; err != nil {
			return fmt.Errorf("failed to update seller fill: %w", err)
		}
		if err := ledger.ReconcileIn(tx, position.SellerID); err != nil {
			return fmt.Errorf("failed to reconcile seller: %w", err)
		}
		if err := ledger.ReconcileIn(tx, position.BuyerID); err != nil {
			return fmt.Errorf("failed to reconcile buyer: %w", err)
		}
		return nil
	})
}

func (d *Database) applyMatch(apply func(tx *gorm.DB) error) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := apply(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
