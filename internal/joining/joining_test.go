package joining

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/goldpack/exchange-core/internal/command"
	"github.com/goldpack/exchange-core/internal/config"
	"github.com/goldpack/exchange-core/internal/database"
	"github.com/goldpack/exchange-core/internal/ledger"
	"github.com/goldpack/exchange-core/internal/types"
)

const sellOrderText = "26500000 ف 10"

type JoiningTestSuite struct {
	suite.Suite
	db      *gorm.DB
	ledger  *ledger.Service
	service *Service
	clock   time.Time
}

func TestJoiningSuite(t *testing.T) {
	suite.Run(t, new(JoiningTestSuite))
}

func (s *JoiningTestSuite) SetupTest() {
	db, err := database.NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	s.Require().NoError(err)
	s.db = db

	cfg := config.DefaultExchange()
	s.ledger = ledger.NewService(db, cfg)
	s.service = NewService(db, s.ledger, cfg)

	s.clock = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.service.SetClock(func() time.Time { return s.clock })
}

func (s *JoiningTestSuite) registerTrader(traderID, capacity int64) {
	err := s.ledger.RegisterTrader(&types.Trader{
		TraderID:      traderID,
		Username:      fmt.Sprintf("trader-%d", traderID),
		CapacityTotal: capacity,
	})
	s.Require().NoError(err)
}

func (s *JoiningTestSuite) reserved(traderID int64) int64 {
	trader, err := s.ledger.GetTrader(traderID)
	s.Require().NoError(err)
	s.Require().NotNil(trader)
	return trader.CapacityReserved
}

// createSellOrder persists trader 1's standing sell order for 10 units and
// returns the reply target addressing it.
func (s *JoiningTestSuite) createSellOrder() command.ReplyTarget {
	order := &types.Order{
		MessageID:    100,
		TraderID:     1,
		Side:         types.SideSell,
		Price:        26500000,
		Amount:       10,
		CreatedAt:    s.clock,
		JoinDeadline: s.clock.Add(time.Minute),
		ExpiresAt:    time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC),
	}
	s.Require().NoError(s.service.db.CreateOrder(order))
	return command.ReplyTarget{MessageID: 100, TraderID: 1, Text: sellOrderText}
}

func (s *JoiningTestSuite) createAdvanceSellOrder() command.ReplyTarget {
	seller := int64(1)
	order := &types.AdvanceOrder{
		MessageID:    100,
		SellerID:     &seller,
		OpenPrice:    26499000,
		ClosePrice:   26500000,
		Amount:       2,
		CreatedAt:    s.clock,
		JoinDeadline: s.clock.Add(time.Minute),
		ExpiresAt:    time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC),
	}
	s.Require().NoError(s.service.db.CreateAdvanceOrder(order))
	return command.ReplyTarget{MessageID: 100, TraderID: 1, Text: "26499000 ب 26500000 فمع 2"}
}

func (s *JoiningTestSuite) TestJoinWithinWindow() {
	s.registerTrader(1, 100)
	s.registerTrader(2, 100)
	reply := s.createSellOrder()

	d, created := s.service.Join(2, 200, reply, "ب 3")
	s.True(d.Success)
	s.True(created)
	s.Equal(types.ReasonOrderPlaced, d.Reason)
	s.Equal(types.DeliveryNone, d.Delivery)

	joined, err := s.service.db.GetOrderByMessageID(200)
	s.Require().NoError(err)
	s.Require().NotNil(joined)
	s.Equal(int64(2), joined.TraderID)
	s.Equal(types.SideBuy, joined.Side)
	s.Equal(int64(26500000), joined.Price)
	s.Equal(int64(3), joined.Amount)

	// The joined order inherits the original's clock so both expire and
	// match on the same terms.
	s.True(joined.CreatedAt.Equal(s.clock))
	s.True(joined.JoinDeadline.Equal(s.clock.Add(time.Minute)))

	s.Equal(int64(3), s.reserved(2))
}

func (s *JoiningTestSuite) TestBareJoinTakesRemainder() {
	s.registerTrader(1, 100)
	s.registerTrader(2, 100)
	reply := s.createSellOrder()

	err := s.db.Model(&types.Order{}).
		Where("message_id = ?", 100).
		Update("filled", 4).Error
	s.Require().NoError(err)

	d, created := s.service.Join(2, 200, reply, "ب")
	s.True(d.Success)
	s.True(created)

	joined, err := s.service.db.GetOrderByMessageID(200)
	s.Require().NoError(err)
	s.Require().NotNil(joined)
	s.Equal(int64(6), joined.Amount)
	s.Equal(int64(6), s.reserved(2))
}

func (s *JoiningTestSuite) TestJoinOwnOrderRejected() {
	s.registerTrader(1, 100)
	reply := s.createSellOrder()

	d, created := s.service.Join(1, 200, reply, "ب")
	s.False(d.Success)
	s.False(created)
	s.Equal(types.ReasonSameTrader, d.Reason)
	s.Equal(types.DeliveryDeleteOrigin, d.Delivery)
}

func (s *JoiningTestSuite) TestJoinVolumeOverflow() {
	s.registerTrader(1, 100)
	s.registerTrader(2, 100)
	reply := s.createSellOrder()

	d, created := s.service.Join(2, 200, reply, "ب 20")
	s.False(d.Success)
	s.False(created)
	s.Equal(types.ReasonVolumeOverflow, d.Reason)
	s.Equal(types.TemplateVolumeOverflow, d.TemplateKey)
	s.Equal("10", d.TemplateArgs["{remainder}"])
	s.Equal(int64(0), s.reserved(2))
}

func (s *JoiningTestSuite) TestJoinFilledOrder() {
	s.registerTrader(1, 100)
	s.registerTrader(2, 100)
	reply := s.createSellOrder()

	err := s.db.Model(&types.Order{}).
		Where("message_id = ?", 100).
		Update("filled", 10).Error
	s.Require().NoError(err)

	d, created := s.service.Join(2, 200, reply, "ب")
	s.False(d.Success)
	s.False(created)
	s.Equal(types.ReasonOrderFilled, d.Reason)
	s.Equal(types.TemplateOrderFilled, d.TemplateKey)
}

func (s *JoiningTestSuite) TestJoinCancelledOrder() {
	s.registerTrader(2, 100)

	// The replied-to order message exists but its row is gone.
	reply := command.ReplyTarget{MessageID: 100, TraderID: 1, Text: sellOrderText}
	d, created := s.service.Join(2, 200, reply, "ب")
	s.False(d.Success)
	s.False(created)
	s.Equal(types.ReasonOrderCancelled, d.Reason)
	s.Equal(types.TemplateOrderCancelled, d.TemplateKey)
}

func (s *JoiningTestSuite) TestJoinCapacityExhausted() {
	s.registerTrader(1, 100)
	s.registerTrader(2, 2)
	reply := s.createSellOrder()

	d, created := s.service.Join(2, 200, reply, "ب 3")
	s.False(d.Success)
	s.False(created)
	s.Equal(types.ReasonCapacityExhausted, d.Reason)
	s.Equal(int64(0), s.reserved(2))
}

func (s *JoiningTestSuite) TestLateJoinIsDeferred() {
	s.registerTrader(1, 100)
	s.registerTrader(2, 100)
	reply := s.createSellOrder()

	// Past the join deadline the reply records a chain entry instead of an
	// order, and nothing is reserved yet.
	s.clock = s.clock.Add(2 * time.Minute)
	d, created := s.service.Join(2, 200, reply, "ب 3")
	s.False(d.Success)
	s.False(created)
	s.Equal(types.ReasonOrderExpired, d.Reason)
	s.Equal(types.TemplateOrderExpired, d.TemplateKey)
	s.Equal(int64(0), s.reserved(2))

	ref, err := s.service.db.GetJoinReference(200)
	s.Require().NoError(err)
	s.Require().NotNil(ref)
	s.Equal(int64(2), ref.TraderID)
	s.Equal(types.TableOrders, ref.OrderTable)
	s.Equal(int64(100), ref.OrderMessageID)
	s.Equal(int64(3), ref.Amount)
}

func (s *JoiningTestSuite) TestDeferredJoinConfirmedByOwner() {
	s.registerTrader(1, 100)
	s.registerTrader(2, 100)
	s.createSellOrder()

	s.Require().NoError(s.service.db.CreateJoinReference(&types.JoinReference{
		MessageID:      200,
		TraderID:       2,
		OrderTable:     types.TableOrders,
		OrderMessageID: 100,
		Amount:         3,
	}))

	// The owner replies a bare join token to the deferred join message.
	chainReply := command.ReplyTarget{MessageID: 200, TraderID: 2, Text: "ب 3"}
	d, created := s.service.Join(1, 300, chainReply, "ب")
	s.True(d.Success)
	s.True(created)

	// The order lands on the deferred joiner, not the confirming owner.
	joined, err := s.service.db.GetOrderByMessageID(300)
	s.Require().NoError(err)
	s.Require().NotNil(joined)
	s.Equal(int64(2), joined.TraderID)
	s.Equal(types.SideBuy, joined.Side)
	s.Equal(int64(3), joined.Amount)
	s.Equal(int64(3), s.reserved(2))
	s.Equal(int64(0), s.reserved(1))

	// The chain entry is consumed.
	ref, err := s.service.db.GetJoinReference(200)
	s.Require().NoError(err)
	s.Nil(ref)
}

func (s *JoiningTestSuite) TestDeferredJoinRejectsNonOwner() {
	s.registerTrader(1, 100)
	s.registerTrader(2, 100)
	s.registerTrader(3, 100)
	s.createSellOrder()

	s.Require().NoError(s.service.db.CreateJoinReference(&types.JoinReference{
		MessageID:      200,
		TraderID:       2,
		OrderTable:     types.TableOrders,
		OrderMessageID: 100,
		Amount:         3,
	}))

	chainReply := command.ReplyTarget{MessageID: 200, TraderID: 2, Text: "ب 3"}
	d, created := s.service.Join(3, 300, chainReply, "ب")
	s.False(d.Success)
	s.False(created)
	s.Equal(types.ReasonNotOwner, d.Reason)

	ref, err := s.service.db.GetJoinReference(200)
	s.Require().NoError(err)
	s.NotNil(ref)
}

func (s *JoiningTestSuite) TestBareJoinToUnrecordedJoinMessage() {
	s.registerTrader(1, 100)
	s.registerTrader(2, 100)

	chainReply := command.ReplyTarget{MessageID: 999, TraderID: 2, Text: "ب 3"}
	d, created := s.service.Join(1, 300, chainReply, "ب")
	s.False(d.Success)
	s.False(created)
	s.Equal(types.ReasonOrderCancelled, d.Reason)
}

func (s *JoiningTestSuite) TestJoinAdvanceOrderTakesOpenLeg() {
	s.registerTrader(1, 200)
	s.registerTrader(2, 200)
	reply := s.createAdvanceSellOrder()

	d, created := s.service.Join(2, 200, reply, "ب")
	s.True(d.Success)
	s.True(created)

	joined, err := s.service.db.GetAdvanceOrderByMessageID(200)
	s.Require().NoError(err)
	s.Require().NotNil(joined)
	s.Require().NotNil(joined.BuyerID)
	s.Equal(int64(2), *joined.BuyerID)
	s.Nil(joined.SellerID)
	s.Equal(int64(26499000), joined.OpenPrice)
	s.Equal(int64(26500000), joined.ClosePrice)
	s.Equal(int64(2), joined.Amount)

	// Buyer leg: 2 * 50000 * 1000 * 2 / 2000000 = 100 units.
	s.Equal(int64(100), s.reserved(2))
}
