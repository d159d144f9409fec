package types

import (
	"time"

	"gorm.io/gorm"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Table names used by join references to point back at the order they target.
const (
	TableOrders        = "orders"
	TableAdvanceOrders = "advance_orders"
)

// Trader holds the capacity ledger row for a registered trader.
// CapacityReserved is the number of units currently committed to open
// orders and positions; it never exceeds CapacityTotal.
type Trader struct {
	gorm.Model       `json:"-"`
	TraderID         int64  `gorm:"uniqueIndex" json:"trader_id"`
	Username         string `json:"username"`
	CapacityTotal    int64  `json:"capacity_total"`
	CapacityReserved int64  `json:"capacity_reserved"`
}

// Order is a simple one-sided order anchored to the chat message that
// created it. JoinDeadline bounds the reply-join window; ExpiresAt is the
// trading-day cutoff the order settles against.
type Order struct {
	gorm.Model   `json:"-"`
	MessageID    int64     `gorm:"uniqueIndex" json:"message_id"`
	TraderID     int64     `json:"trader_id"`
	Side         string    `json:"side"` // BUY or SELL
	Price        int64     `json:"price"`
	Amount       int64     `json:"amount"`
	Filled       int64     `json:"filled"`
	CreatedAt    time.Time `json:"created_at"`
	JoinDeadline time.Time `json:"join_deadline"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AdvanceOrder is a two-legged order: exactly one of SellerID/BuyerID is set
// at creation, the counter leg is taken by a joining trader or a matching
// opposite order.
type AdvanceOrder struct {
	gorm.Model   `json:"-"`
	MessageID    int64     `gorm:"uniqueIndex" json:"message_id"`
	SellerID     *int64    `json:"seller_id"`
	BuyerID      *int64    `json:"buyer_id"`
	OpenPrice    int64     `json:"open_price"`
	ClosePrice   int64     `json:"close_price"`
	Amount       int64     `json:"amount"`
	Filled       int64     `json:"filled"`
	CreatedAt    time.Time `json:"created_at"`
	JoinDeadline time.Time `json:"join_deadline"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Position is an immutable record of a completed simple-order match.
type Position struct {
	gorm.Model `json:"-"`
	PositionID string    `gorm:"uniqueIndex" json:"position_id"`
	SellerID   int64     `json:"seller_id"`
	BuyerID    int64     `json:"buyer_id"`
	Amount     int64     `json:"amount"`
	OpenPrice  int64     `json:"open_price"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// AdvancePosition is an immutable record of a completed advance-order match.
type AdvancePosition struct {
	gorm.Model `json:"-"`
	PositionID string    `gorm:"uniqueIndex" json:"position_id"`
	SellerID   int64     `json:"seller_id"`
	BuyerID    int64     `json:"buyer_id"`
	Amount     int64     `json:"amount"`
	OpenPrice  int64     `json:"open_price"`
	ClosePrice int64     `json:"close_price"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// JoinReference records a reply-join that arrived after the referenced
// order's join window had closed. It is consumed (deleted) when the order's
// owner confirms the join, or removed with the order on cancellation.
type JoinReference struct {
	gorm.Model     `json:"-"`
	MessageID      int64  `gorm:"uniqueIndex" json:"message_id"`
	TraderID       int64  `json:"trader_id"`
	OrderTable     string `json:"order_table"`
	OrderMessageID int64  `json:"order_message_id"`
	Amount         int64  `json:"amount"`
}

// Remaining returns the unmatched volume of the order.
func (o *Order) Remaining() int64 { return o.Amount - o.Filled }

// Remaining returns the unmatched volume of the advance order.
func (o *AdvanceOrder) Remaining() int64 { return o.Amount - o.Filled }

// Leg reports which leg of the advance order the given trader occupies.
func (o *AdvanceOrder) Leg(traderID int64) (seller, buyer bool) {
	seller = o.SellerID != nil && *o.SellerID == traderID
	buyer = o.BuyerID != nil && *o.BuyerID == traderID
	return
}

// OrderState is the explicit lifecycle state derived from fill progress.
// Cancelled orders have no row, so no state value is needed for them here.
type OrderState string

const (
	StateOpen            OrderState = "OPEN"
	StatePartiallyFilled OrderState = "PARTIALLY_FILLED"
	StateFilled          OrderState = "FILLED"
)

// StateOf derives the order state from filled volume vs requested amount.
func StateOf(filled, amount int64) OrderState {
	switch {
	case filled >= amount:
		return StateFilled
	case filled > 0:
		return StatePartiallyFilled
	default:
		return StateOpen
	}
}
