// Package joining resolves "reply to an order" commands. A reply can target
// an order message directly, or indirectly target a prior join message whose
// window had already closed; the latter is recorded as a JoinReference and
// only executes once the order's owner confirms it.
package joining

import (
	"strconv"
	"time"

	"github.com/goldpack/exchange-core/internal/command"
	"github.com/goldpack/exchange-core/internal/config"
	"github.com/goldpack/exchange-core/internal/ledger"
	"github.com/goldpack/exchange-core/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service resolves join-by-reply commands against open orders.
type Service struct {
	db     *Database
	ledger *ledger.Service
	cfg    config.Exchange
	now    func() time.Time
}

// NewService creates a join resolver with the given database connection.
func NewService(gormDB *gorm.DB, ledgerSvc *ledger.Service, cfg config.Exchange) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		ledger: ledgerSvc,
		cfg:    cfg,
		now:    time.Now,
	}
}

// SetClock overrides the wall clock. Intended for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// target carries the order reference a reply resolved to.
type target struct {
	orderMessageID int64
	table          string
	// joiner is the trader the resulting order belongs to. For deferred
	// joins this is the trader recorded on the chain, not the sender.
	joiner int64
	amount int64 // 0 = take the order's remainder
	// deferred joins skip the window re-check and need owner confirmation
	skipWindowCheck bool
	consumedChainID int64 // reply-message id of the consumed JoinReference
}

// Join executes one join-by-reply command and reports whether a new order
// row was persisted.
func (s *Service) Join(traderID, messageID int64, reply command.ReplyTarget, rawText string) (types.Directive, bool) {
	logger := log.With().
		Int64("trader_id", traderID).
		Int64("replied_message_id", reply.MessageID).
		Str("component", "join_resolver").
		Logger()

	if traderID == reply.TraderID {
		return types.NewDirective(false, types.ReasonSameTrader, "", types.DeliveryDeleteOrigin), false
	}

	tgt, directive, ok := s.resolveTarget(traderID, reply, rawText)
	if !ok {
		return directive, false
	}

	cmd := command.Parse(rawText, true)
	if tgt.amount == 0 && cmd.HasAmount {
		tgt.amount = cmd.Amount
	}

	var d types.Directive
	var created bool
	var err error
	switch tgt.table {
	case types.TableOrders:
		d, created, err = s.joinSimple(traderID, messageID, tgt)
	case types.TableAdvanceOrders:
		d, created, err = s.joinAdvance(traderID, messageID, tgt)
	default:
		return types.NewDirective(false, types.ReasonOrderCancelled, types.TemplateOrderCancelled, types.DeliveryReply), false
	}
	if err != nil {
		logger.Error().Err(err).Msg("join resolution failed")
		return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone), false
	}
	return d, created
}

// resolveTarget turns the reply into an order reference, following the
// join-reference chain for indirect addressing.
func (s *Service) resolveTarget(traderID int64, reply command.ReplyTarget, rawText string) (target, types.Directive, bool) {
	tgt := target{
		orderMessageID: reply.MessageID,
		joiner:         traderID,
	}

	// A bare join token replying to another join message addresses the
	// original order through the recorded chain.
	if command.IsBareJoin(rawText) && command.IsJoinShape(reply.Text) {
		ref, err := s.db.GetJoinReference(reply.MessageID)
		if err != nil {
			return tgt, types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone), false
		}
		if ref == nil {
			return tgt, types.NewDirective(false, types.ReasonOrderCancelled, types.TemplateOrderCancelled, types.DeliveryReply), false
		}
		tgt.orderMessageID = ref.OrderMessageID
		tgt.table = ref.OrderTable
		tgt.amount = ref.Amount
		tgt.joiner = ref.TraderID
		tgt.skipWindowCheck = true
		tgt.consumedChainID = reply.MessageID
		return tgt, types.Directive{}, true
	}

	tgt.table = command.TableFor(reply.Text)
	return tgt, types.Directive{}, true
}

func (s *Service) joinSimple(senderID, messageID int64, tgt target) (types.Directive, bool, error) {
	order, err := s.db.GetOrderByMessageID(tgt.orderMessageID)
	if err != nil {
		return types.Directive{}, false, err
	}
	if order == nil {
		return types.NewDirective(false, types.ReasonOrderCancelled, types.TemplateOrderCancelled, types.DeliveryReply), false, nil
	}

	if tgt.skipWindowCheck && senderID != order.TraderID {
		// Deferred joins execute only on the order owner's confirmation.
		return types.NewDirective(false, types.ReasonNotOwner, "", types.DeliveryDeleteOrigin), false, nil
	}

	remaining := order.Remaining()
	amount := tgt.amount
	if amount == 0 {
		amount = remaining
	}

	if d, ok := s.gateJoin(messageID, tgt, order.JoinDeadline, remaining, amount); !ok {
		return d, false, nil
	}

	ok, err := s.ledger.Reserve(tgt.joiner, amount)
	if err != nil {
		return types.Directive{}, false, err
	}
	if !ok {
		return types.NewDirective(false, types.ReasonCapacityExhausted, types.TemplateCapacityIssue, types.DeliveryReply), false, nil
	}

	side := types.SideBuy
	if order.Side == types.SideBuy {
		side = types.SideSell
	}
	joined := &types.Order{
		MessageID:    messageID,
		TraderID:     tgt.joiner,
		Side:         side,
		Price:        order.Price,
		Amount:       amount,
		Filled:       0,
		CreatedAt:    order.CreatedAt,
		JoinDeadline: order.JoinDeadline,
		ExpiresAt:    order.ExpiresAt,
	}
	if err := s.db.CreateOrder(joined); err != nil {
		return types.Directive{}, false, err
	}

	return s.finishJoin(tgt)
}

func (s *Service) joinAdvance(senderID, messageID int64, tgt target) (types.Directive, bool, error) {
	order, err := s.db.GetAdvanceOrderByMessageID(tgt.orderMessageID)
	if err != nil {
		return types.Directive{}, false, err
	}
	if order == nil {
		return types.NewDirective(false, types.ReasonOrderCancelled, types.TemplateOrderCancelled, types.DeliveryReply), false, nil
	}

	if tgt.skipWindowCheck {
		ownerID := int64(0)
		if order.BuyerID != nil {
			ownerID = *order.BuyerID
		} else if order.SellerID != nil {
			ownerID = *order.SellerID
		}
		if senderID != ownerID {
			return types.NewDirective(false, types.ReasonNotOwner, "", types.DeliveryDeleteOrigin), false, nil
		}
	}

	remaining := order.Remaining()
	amount := tgt.amount
	if amount == 0 {
		amount = remaining
	}

	if d, ok := s.gateJoin(messageID, tgt, order.JoinDeadline, remaining, amount); !ok {
		return d, false, nil
	}

	// The joiner takes whichever leg the original left open.
	buyerLeg := order.BuyerID == nil
	units := s.ledger.SpreadReservation(amount, order.OpenPrice, order.ClosePrice, buyerLeg)
	ok, err := s.ledger.Reserve(tgt.joiner, units)
	if err != nil {
		return types.Directive{}, false, err
	}
	if !ok {
		return types.NewDirective(false, types.ReasonCapacityExhausted, types.TemplateCapacityIssue, types.DeliveryReply), false, nil
	}

	joined := &types.AdvanceOrder{
		MessageID:    messageID,
		OpenPrice:    order.OpenPrice,
		ClosePrice:   order.ClosePrice,
		Amount:       amount,
		Filled:       0,
		CreatedAt:    order.CreatedAt,
		JoinDeadline: order.JoinDeadline,
		ExpiresAt:    order.ExpiresAt,
	}
	joiner := tgt.joiner
	if buyerLeg {
		joined.BuyerID = &joiner
	} else {
		joined.SellerID = &joiner
	}
	if err := s.db.CreateAdvanceOrder(joined); err != nil {
		return types.Directive{}, false, err
	}

	return s.finishJoin(tgt)
}

// gateJoin applies the ordered join rules shared by both tables: window
// expiry (deferring via a JoinReference), zero remainder, and overflow.
func (s *Service) gateJoin(messageID int64, tgt target, deadline time.Time, remaining, amount int64) (types.Directive, bool) {
	if !tgt.skipWindowCheck && s.now().After(deadline) {
		ref := &types.JoinReference{
			MessageID:      messageID,
			TraderID:       tgt.joiner,
			OrderTable:     tgt.table,
			OrderMessageID: tgt.orderMessageID,
			Amount:         amount,
		}
		if err := s.db.CreateJoinReference(ref); err != nil {
			log.Error().Err(err).Msg("failed to record deferred join")
			return types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone), false
		}
		return types.NewDirective(false, types.ReasonOrderExpired, types.TemplateOrderExpired, types.DeliveryReply), false
	}

	if remaining == 0 {
		return types.NewDirective(false, types.ReasonOrderFilled, types.TemplateOrderFilled, types.DeliveryReply), false
	}

	if amount > remaining {
		d := types.NewDirective(false, types.ReasonVolumeOverflow, types.TemplateVolumeOverflow, types.DeliveryReply)
		d.TemplateArgs["{remainder}"] = strconv.FormatInt(remaining, 10)
		return d, false
	}

	return types.Directive{}, true
}

// finishJoin deletes a consumed chain entry and reports success.
func (s *Service) finishJoin(tgt target) (types.Directive, bool, error) {
	if tgt.consumedChainID != 0 {
		if err := s.db.DeleteJoinReference(tgt.consumedChainID); err != nil {
			return types.Directive{}, false, err
		}
	}
	return types.NewDirective(true, types.ReasonOrderPlaced, "", types.DeliveryNone), true, nil
}
