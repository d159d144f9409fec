package joining

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

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) CreateAdvanceOrder(order *types.AdvanceOrder) error {
	return d.db.Create(order).Error
}

func (d *Database) GetJoinReference(messageID int64) (*types.JoinReference, error) {
	var ref types.JoinReference
	if err := d.db.Where("message_id = ?", messageID).First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

func (d *Database) CreateJoinReference(ref *types.JoinReference) error {
	return d.db.Create(ref).Error
}

func (d *Database) DeleteJoinReference(messageID int64) error {
	return d.db.Where("message_id = ?", messageID).Delete(&types.JoinReference{}).Error
}
