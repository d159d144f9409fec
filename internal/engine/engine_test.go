package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/goldpack/exchange-core/internal/command"
	"github.com/goldpack/exchange-core/internal/config"
	"github.com/goldpack/exchange-core/internal/database"
	"github.com/goldpack/exchange-core/internal/intake"
	"github.com/goldpack/exchange-core/internal/joining"
	"github.com/goldpack/exchange-core/internal/ledger"
	"github.com/goldpack/exchange-core/internal/matching"
	"github.com/goldpack/exchange-core/internal/pricing"
	"github.com/goldpack/exchange-core/internal/types"
)

type EngineTestSuite struct {
	suite.Suite
	db      *gorm.DB
	ledger  *ledger.Service
	service *Service
	clock   time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	db, err := database.NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	s.Require().NoError(err)
	s.db = db

	cfg := config.DefaultExchange()
	s.ledger = ledger.NewService(db, cfg)

	source := pricing.NewBoundRateSource(cfg.PriceBoundRate)
	source.SetPrice(26500000)
	provider := pricing.NewProvider(source, time.Minute)
	s.Require().NoError(provider.Refresh(context.Background()))

	joinSvc := joining.NewService(db, s.ledger, cfg)
	intakeSvc := intake.NewService(db, s.ledger, joinSvc, provider, cfg)
	s.service = NewService(intakeSvc, matching.NewService(db))

	s.clock = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	intakeSvc.SetClock(func() time.Time { return s.clock })
	joinSvc.SetClock(func() time.Time { return s.clock })

	for traderID := int64(1); traderID <= 2; traderID++ {
		err := s.ledger.RegisterTrader(&types.Trader{
			TraderID:      traderID,
			Username:      fmt.Sprintf("trader-%d", traderID),
			CapacityTotal: 100,
		})
		s.Require().NoError(err)
	}
}

func (s *EngineTestSuite) TestHandleMatchesCounterOrders() {
	directives := s.service.Handle(1, 100, "26500000 ف 2", nil)
	s.Require().Len(directives, 1)
	s.True(directives[0].Success)
	s.Equal(types.ReasonOrderPlaced, directives[0].Reason)

	// The counter order triggers a sweep; the match notification rides
	// along on the same response.
	directives = s.service.Handle(2, 101, "26500000 خ 2", nil)
	s.Require().Len(directives, 2)
	s.Equal(types.ReasonOrderPlaced, directives[0].Reason)
	s.Equal(types.ReasonPositionCreated, directives[1].Reason)
	s.Equal(types.DeliveryBroadcast, directives[1].Delivery)
	s.Equal("trader-1", directives[1].TemplateArgs["{seller_name}"])
	s.Equal("trader-2", directives[1].TemplateArgs["{buyer_name}"])

	var count int64
	s.Require().NoError(s.db.Model(&types.Position{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *EngineTestSuite) TestHandleJoinThenMatch() {
	directives := s.service.Handle(1, 100, "26500000 ف 3", nil)
	s.Require().Len(directives, 1)

	reply := &command.ReplyTarget{MessageID: 100, TraderID: 1, Text: "26500000 ف 3"}
	directives = s.service.Handle(2, 101, "ب", reply)
	s.Require().Len(directives, 2)
	s.Equal(types.ReasonOrderPlaced, directives[0].Reason)
	s.Equal(types.ReasonPositionCreated, directives[1].Reason)
	s.Equal("3", directives[1].TemplateArgs["{position_amount}"])
}

func (s *EngineTestSuite) TestHandleRejectionSkipsSweep() {
	directives := s.service.Handle(1, 100, "99999999 خ", nil)
	s.Require().Len(directives, 1)
	s.False(directives[0].Success)
	s.Equal(types.ReasonPriceOutsideBand, directives[0].Reason)
}

func (s *EngineTestSuite) TestHandleCancelAll() {
	s.service.Handle(1, 100, "26500000 ف 2", nil)

	directives := s.service.Handle(1, 101, "ن", nil)
	s.Require().Len(directives, 1)
	s.True(directives[0].Success)
	s.Equal(types.ReasonOrdersDeleted, directives[0].Reason)

	trader, err := s.ledger.GetTrader(1)
	s.Require().NoError(err)
	s.Equal(int64(0), trader.CapacityReserved)
}
