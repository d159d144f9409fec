package ledger

import "errors"

// ErrTraderNotFound signals a consistency failure: the ledger row for a
// trader vanished mid-operation. It aborts the single operation and is never
// silently ignored.
var ErrTraderNotFound = errors.New("trader not found")

// LegLeverage is the worst-case loss multiplier per advance-order leg.
// Buyers carry the full spread both ways; sellers are capped at 1x.
const (
	BuyerLegLeverage  = 2
	SellerLegLeverage = 1
)
