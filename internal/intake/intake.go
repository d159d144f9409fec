// Package intake turns raw trader messages into persisted order records.
// It owns the command dispatch, price/timing validation against the current
// band, capacity reservation, and order cancellation.
package intake

import (
	"time"

	"github.com/goldpack/exchange-core/internal/command"
	"github.com/goldpack/exchange-core/internal/config"
	"github.com/goldpack/exchange-core/internal/joining"
	"github.com/goldpack/exchange-core/internal/ledger"
	"github.com/goldpack/exchange-core/internal/pricing"
	"github.com/goldpack/exchange-core/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service handles order submission and cancellation.
type Service struct {
	db      *Database
	ledger  *ledger.Service
	joins   *joining.Service
	pricing *pricing.Provider
	cfg     config.Exchange
	now     func() time.Time
}

// NewService creates an intake service wired to its collaborators.
func NewService(gormDB *gorm.DB, ledgerSvc *ledger.Service, joinSvc *joining.Service, priceBand *pricing.Provider, cfg config.Exchange) *Service {
	return &Service{
		db:      NewDatabase(gormDB),
		ledger:  ledgerSvc,
		joins:   joinSvc,
		pricing: priceBand,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetClock overrides the wall clock. Intended for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Submit processes one trader message and reports whether a new order row
// was persisted (which is what triggers a matching sweep).
func (s *Service) Submit(traderID, messageID int64, text string, reply *command.ReplyTarget) (types.Directive, bool) {
	cmd := command.Parse(text, reply != nil)

	switch cmd.Kind {
	case command.KindSimple:
		return s.submitSimple(traderID, messageID, cmd)
	case command.KindAdvance:
		return s.submitAdvance(traderID, messageID, cmd)
	case command.KindJoin:
		return s.joins.Join(traderID, messageID, *reply, text)
	case command.KindCancelOne:
		return s.cancelOne(traderID, *reply), false
	case command.KindCancelAll:
		return s.cancelAll(traderID), false
	default:
		return types.NewDirective(false, types.ReasonInvalidMessage, "", types.DeliveryNone), false
	}
}

func (s *Service) submitSimple(traderID, messageID int64, cmd command.Command) (types.Directive, bool) {
	logger := log.With().
		Int64("trader_id", traderID).
		Str("component", "intake").
		Logger()

	band := s.pricing.Snapshot()
	price, err := command.ResolvePrice(cmd.PriceDigits, band.BasePrefix)
	if err != nil {
		return types.NewDirective(false, types.ReasonInvalidPrice, "", types.DeliveryDeleteOrigin), false
	}

	if !band.Contains(price) {
		return types.NewDirective(false, types.ReasonPriceOutsideBand, "", types.DeliveryDeleteOrigin), false
	}

	now := s.now()
	if cmd.ExtraDay && !s.cfg.InTomorrowWindow(now) {
		return types.NewDirective(false, types.ReasonTimingInvalid, "", types.DeliveryDeleteOrigin), false
	}

	ok, err := s.ledger.Reserve(traderID, cmd.Amount)
	if err != nil {
		logger.Error().Err(err).Msg("capacity reservation failed")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone), false
	}
	if !ok {
		return types.NewDirective(false, types.ReasonCapacityExhausted, types.TemplateCapacityIssue, types.DeliveryReply), false
	}

	order := &types.Order{
		MessageID:    messageID,
		TraderID:     traderID,
		Side:         cmd.Side,
		Price:        price,
		Amount:       cmd.Amount,
		Filled:       0,
		CreatedAt:    now,
		JoinDeadline: now.Add(s.cfg.JoinWindow.Std()),
		ExpiresAt:    s.cfg.TradingDayExpiry(now, cmd.ExtraDay),
	}
	if err := s.db.CreateOrder(order); err != nil {
		logger.Error().Err(err).Msg("failed to persist order")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone), false
	}

	logger.Info().
		Str("side", order.Side).
		Int64("price", order.Price).
		Int64("amount", order.Amount).
		Msg("order placed")
	return types.NewDirective(true, types.ReasonOrderPlaced, "", types.DeliveryNone), true
}

func (s *Service) submitAdvance(traderID, messageID int64, cmd command.Command) (types.Directive, bool) {
	logger := log.With().
		Int64("trader_id", traderID).
		Str("component", "intake").
		Logger()

	band := s.pricing.Snapshot()
	openPrice, err := command.ResolvePrice(cmd.OpenDigits, band.BasePrefix)
	if err != nil {
		return types.NewDirective(false, types.ReasonInvalidPrice, "", types.DeliveryDeleteOrigin), false
	}
	closePrice, err := command.ResolvePrice(cmd.CloseDigits, band.BasePrefix)
	if err != nil {
		return types.NewDirective(false, types.ReasonInvalidPrice, "", types.DeliveryDeleteOrigin), false
	}

	if openPrice > closePrice {
		return types.NewDirective(false, types.ReasonInvalidPrice, "", types.DeliveryDeleteOrigin), false
	}
	if !band.Contains(openPrice) || !band.Contains(closePrice) {
		return types.NewDirective(false, types.ReasonPriceOutsideBand, "", types.DeliveryDeleteOrigin), false
	}

	buyerLeg := !cmd.SellerLeg
	units := s.ledger.SpreadReservation(cmd.Amount, openPrice, closePrice, buyerLeg)
	ok, err := s.ledger.Reserve(traderID, units)
	if err != nil {
		logger.Error().Err(err).Msg("capacity reservation failed")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone), false
	}
	if !ok {
		return types.NewDirective(false, types.ReasonCapacityExhausted, types.TemplateCapacityIssue, types.DeliveryReply), false
	}

	now := s.now()
	order := &types.AdvanceOrder{
		MessageID:    messageID,
		OpenPrice:    openPrice,
		ClosePrice:   closePrice,
		Amount:       cmd.Amount,
		Filled:       0,
		CreatedAt:    now,
		JoinDeadline: now.Add(s.cfg.JoinWindow.Std()),
		ExpiresAt:    s.cfg.TradingDayExpiry(now, false),
	}
	trader := traderID
	if cmd.SellerLeg {
		order.SellerID = &trader
	} else {
		order.BuyerID = &trader
	}
	if err := s.db.CreateAdvanceOrder(order); err != nil {
		logger.Error().Err(err).Msg("failed to persist advance order")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone), false
	}

	logger.Info().
		Int64("open_price", openPrice).
		Int64("close_price", closePrice).
		Int64("amount", cmd.Amount).
		Bool("seller_leg", cmd.SellerLeg).
		Msg("advance order placed")
	return types.NewDirective(true, types.ReasonOrderPlaced, "", types.DeliveryNone), true
}

// cancelOne removes the replied-to order if the caller owns it, releasing
// the unmatched remainder of its reservation.
func (s *Service) cancelOne(traderID int64, reply command.ReplyTarget) types.Directive {
	logger := log.With().
		Int64("trader_id", traderID).
		Int64("order_message_id", reply.MessageID).
		Str("component", "intake").
		Logger()

	var owner bool
	var remainder int64
	var deleteRow func() error

	order, err := s.db.GetOrderByMessageID(reply.MessageID)
	if err != nil {
		logger.Error().Err(err).Msg("order lookup failed")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
	}
	if order != nil {
		owner = order.TraderID == traderID
		remainder = order.Remaining()
		deleteRow = func() error { return s.db.DeleteOrderByMessageID(reply.MessageID) }
	} else {
		advance, err := s.db.GetAdvanceOrderByMessageID(reply.MessageID)
		if err != nil {
			logger.Error().Err(err).Msg("advance order lookup failed")
			return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
		}
		if advance != nil {
			seller, buyer := advance.Leg(traderID)
			owner = seller || buyer
			remainder = advance.Remaining()
			deleteRow = func() error { return s.db.DeleteAdvanceOrderByMessageID(reply.MessageID) }
		}
	}

	if deleteRow == nil || !owner {
		return types.NewDirective(false, types.ReasonOrderNotFound, "", types.DeliveryDeleteOrigin)
	}

	if err := deleteRow(); err != nil {
		logger.Error().Err(err).Msg("failed to delete order")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
	}
	if err := s.db.DeleteJoinReferencesForOrder(reply.MessageID); err != nil {
		logger.Error().Err(err).Msg("failed to delete join references")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
	}
	if err := s.ledger.Release(traderID, remainder); err != nil {
		logger.Error().Err(err).Msg("failed to release reservation")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
	}

	name, err := s.ledger.GetName(traderID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve trader name")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
	}

	logger.Info().Int64("released", remainder).Msg("order cancelled")
	d := types.NewDirective(true, types.ReasonOrderDeleted, types.TemplateDeleteOrder, types.DeliveryReply)
	d.TemplateArgs["{name}"] = name
	return d
}

// cancelAll removes every open order and join-chain entry the trader owns,
// releasing the aggregate unmatched remainder in one ledger call.
func (s *Service) cancelAll(traderID int64) types.Directive {
	logger := log.With().
		Int64("trader_id", traderID).
		Str("component", "intake").
		Logger()

	var total int64

	orders, err := s.db.OrdersByTrader(traderID)
	if err != nil {
		logger.Error().Err(err).Msg("order lookup failed")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
	}
	for i := range orders {
		if r := orders[i].Remaining(); r > 0 {
			total += r
		}
		if err := s.db.DeleteOrderByMessageID(orders[i].MessageID); err != nil {
			logger.Error().Err(err).Msg("failed to delete order")
			return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
		}
	}

	advances, err := s.db.AdvanceOrdersByTrader(traderID)
	if err != nil {
		logger.Error().Err(err).Msg("advance order lookup failed")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
	}
	for i := range advances {
		if r := advances[i].Remaining(); r > 0 {
			total += r
		}
		if err := s.db.DeleteAdvanceOrderByMessageID(advances[i].MessageID); err != nil {
			logger.Error().Err(err).Msg("failed to delete advance order")
			return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
		}
	}

	if err := s.db.DeleteJoinReferencesForTrader(traderID); err != nil {
		logger.Error().Err(err).Msg("failed to delete join chain")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
	}

	if total > 0 {
		if err := s.ledger.Release(traderID, total); err != nil {
			logger.Error().Err(err).Msg("failed to release reservations")
			return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
		}
	}

	name, err := s.ledger.GetName(traderID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve trader name")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone)
	}

	logger.Info().
		Int("orders", len(orders)).
		Int("advance_orders", len(advances)).
		Int64("released", total).
		Msg("all orders cancelled")
	d := types.NewDirective(true, types.ReasonOrdersDeleted, types.TemplateDeleteOrders, types.DeliveryReply)
	d.TemplateArgs["{name}"] = name
	return d
}
