// Package matching pairs compatible open orders into executed positions.
//
// The scan is a deliberate O(n²) pairwise pass in load order with
// first-match-wins semantics. It is not price-time priority; that is the
// documented matching policy, kept behind the Matcher interface so a sorted
// order-book implementation could replace it without touching intake or the
// ledger contracts.
package matching

import (
	"strconv"
	"time"

	"github.com/goldpack/exchange-core/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Matcher runs one full matching pass over all open orders.
type Matcher interface {
	Sweep() ([]types.Directive, error)
}

// Service is the pairwise first-match-wins Matcher.
type Service struct {
	db *Database
}

// NewService creates a matching service with the given database connection.
func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

// Sweep scans simple orders then advance orders, emitting one broadcast
// directive per created position.
func (s *Service) Sweep() ([]types.Directive, error) {
	simple, err := s.sweepSimple()
	if err != nil {
		return nil, err
	}
	advance, err := s.sweepAdvance()
	if err != nil {
		return nil, err
	}
	return append(simple, advance...), nil
}

func (s *Service) sweepSimple() ([]types.Directive, error) {
	orders, err := s.db.OpenOrders()
	if err != nil {
		return nil, err
	}

	var directives []types.Directive
	for i := range orders {
		for j := i + 1; j < len(orders); j++ {
			a, b := &orders[i], &orders[j]

			if !simpleEligible(a, b) {
				continue
			}

			buyer, seller := a, b
			if a.Side != types.SideBuy {
				buyer, seller = b, a
			}

			matched := buyer.Remaining()
			if r := seller.Remaining(); r < matched {
				matched = r
			}

			position := &types.Position{
				PositionID: "POS_" + uuid.New().String(),
				SellerID:   seller.TraderID,
				BuyerID:    buyer.TraderID,
				Amount:     matched,
				OpenPrice:  buyer.Price,
				CreatedAt:  time.Now(),
				ExpiresAt:  buyer.ExpiresAt,
			}

			err := s.db.ApplySimpleMatch(position, buyer.ID, seller.ID,
				buyer.Filled+matched, seller.Filled+matched)
			if err != nil {
				return nil, err
			}
			buyer.Filled += matched
			seller.Filled += matched

			d, err := s.positionDirective(position.SellerID, position.BuyerID,
				types.TemplateSimplePosition, map[string]string{
					"{position_amount}": strconv.FormatInt(matched, 10),
					"{open_price}":      strconv.FormatInt(position.OpenPrice, 10),
					"{date}":            position.CreatedAt.Format(time.RFC3339),
					"{expiration_date}": position.ExpiresAt.Format(time.RFC3339),
				})
			if err != nil {
				return nil, err
			}
			directives = append(directives, d)

			log.Info().
				Str("position_id", position.PositionID).
				Int64("seller_id", position.SellerID).
				Int64("buyer_id", position.BuyerID).
				Int64("amount", matched).
				Int64("price", position.OpenPrice).
				Msg("position created")
		}
	}
	return directives, nil
}

func (s *Service) sweepAdvance() ([]types.Directive, error) {
	orders, err := s.db.OpenAdvanceOrders()
	if err != nil {
		return nil, err
	}

	var directives []types.Directive
	for i := range orders {
		for j := i + 1; j < len(orders); j++ {
			a, b := &orders[i], &orders[j]

			if !advanceEligible(a, b) {
				continue
			}

			buyer, seller := a, b
			if a.BuyerID == nil {
				buyer, seller = b, a
			}

			matched := buyer.Remaining()
			if r := seller.Remaining(); r < matched {
				matched = r
			}

			position := &types.AdvancePosition{
				PositionID: "APOS_" + uuid.New().String(),
				SellerID:   *seller.SellerID,
				BuyerID:    *buyer.BuyerID,
				Amount:     matched,
				OpenPrice:  buyer.OpenPrice,
				ClosePrice: seller.ClosePrice,
				CreatedAt:  time.Now(),
				ExpiresAt:  buyer.ExpiresAt,
			}

			err := s.db.ApplyAdvanceMatch(position, buyer.ID, seller.ID,
				buyer.Filled+matched, seller.Filled+matched)
			if err != nil {
				return nil, err
			}
			buyer.Filled += matched
			seller.Filled += matched

			d, err := s.positionDirective(position.SellerID, position.BuyerID,
				types.TemplateAdvancePosition, map[string]string{
					"{position_amount}": strconv.FormatInt(matched, 10),
					"{open_price}":      strconv.FormatInt(position.OpenPrice, 10),
					"{close_price}":     strconv.FormatInt(position.ClosePrice, 10),
					"{date}":            position.CreatedAt.Format(time.RFC3339),
					"{expiration_date}": position.ExpiresAt.Format(time.RFC3339),
				})
			if err != nil {
				return nil, err
			}
			directives = append(directives, d)

			log.Info().
				Str("position_id", position.PositionID).
				Int64("seller_id", position.SellerID).
				Int64("buyer_id", position.BuyerID).
				Int64("amount", matched).
				Msg("advance position created")
		}
	}
	return directives, nil
}

// simpleEligible tests one ordered pair (a loaded before b). The timing rule
// compares a's join-window end against b's creation time in that direction
// only; a later order cannot retroactively match one whose window closed
// before it existed.
func simpleEligible(a, b *types.Order) bool {
	return a.TraderID != b.TraderID &&
		a.Side != b.Side &&
		a.Price == b.Price &&
		a.ExpiresAt.Equal(b.ExpiresAt) &&
		a.Remaining() > 0 &&
		b.Remaining() > 0 &&
		a.JoinDeadline.After(b.CreatedAt)
}

// advanceEligible requires complementary legs with no trader collision and
// the same asymmetric timing rule as simpleEligible.
func advanceEligible(a, b *types.AdvanceOrder) bool {
	complementary := (a.SellerID != nil && b.BuyerID != nil) ||
		(a.BuyerID != nil && b.SellerID != nil)
	if !complementary {
		return false
	}

	buyer, seller := a, b
	if a.BuyerID == nil {
		buyer, seller = b, a
	}
	if buyer.BuyerID == nil || seller.SellerID == nil {
		return false
	}
	if *buyer.BuyerID == *seller.SellerID {
		return false
	}

	return a.OpenPrice == b.OpenPrice &&
		a.ClosePrice == b.ClosePrice &&
		a.ExpiresAt.Equal(b.ExpiresAt) &&
		a.Remaining() > 0 &&
		b.Remaining() > 0 &&
		a.JoinDeadline.After(b.CreatedAt)
}

// positionDirective builds the broadcast notification for a created
// position, carrying both counterparties' names.
func (s *Service) positionDirective(sellerID, buyerID int64, templateKey string, args map[string]string) (types.Directive, error) {
	sellerName, err := s.db.TraderName(sellerID)
	if err != nil {
		return types.Directive{}, err
	}
	buyerName, err := s.db.TraderName(buyerID)
	if err != nil {
		return types.Directive{}, err
	}

	d := types.NewDirective(true, types.ReasonPositionCreated, templateKey, types.DeliveryBroadcast)
	d.TemplateArgs["{seller_name}"] = sellerName
	d.TemplateArgs["{buyer_name}"] = buyerName
	for k, v := range args {
		d.TemplateArgs[k] = v
	}
	return d, nil
}
