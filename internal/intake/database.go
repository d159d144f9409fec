package intake

import (
	"errors"

	"github.com/goldpack/exchange-core/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) CreateAdvanceOrder(order *types.AdvanceOrder) error {
	return d.db.Create(order).Error
}

func (d *Database) GetOrderByMessageID(messageID int64) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("message_id = ?", messageID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetAdvanceOrderByMessageID(messageID int64) (*types.AdvanceOrder, error) {
	var order types.AdvanceOrder
	if err := d.db.Where("message_id = ?", messageID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) OrdersByTrader(traderID int64) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("trader_id = ?", traderID).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) AdvanceOrdersByTrader(traderID int64) ([]types.AdvanceOrder, error) {
	var orders []types.AdvanceOrder
	err := d.db.Where("seller_id = ? OR buyer_id = ?", traderID, traderID).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) DeleteOrderByMessageID(messageID int64) error {
	return d.db.Where("message_id = ?", messageID).Delete(&types.Order{}).Error
}

func (d *Database) DeleteAdvanceOrderByMessageID(messageID int64) error {
	return d.db.Where("message_id = ?", messageID).Delete(&types.AdvanceOrder{}).Error
}

// DeleteJoinReferencesForOrder removes chain entries pointing at an order.
func (d *Database) DeleteJoinReferencesForOrder(orderMessageID int64) error {
	return d.db.Where("order_message_id = ?", orderMessageID).
		Delete(&types.JoinReference{}).Error
}

// DeleteJoinReferencesForTrader removes a trader's own chain entries.
func (d *Database) DeleteJoinReferencesForTrader(traderID int64) error {
	return d.db.Where("trader_id = ?", traderID).
		Delete(&types.JoinReference{}).Error
}
