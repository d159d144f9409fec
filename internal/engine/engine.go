// Package engine sequences one inbound command through Order Intake and,
// when the command persisted a new order row, a full Matching Sweep. The
// resulting directives are returned to the transport layer in order.
package engine

import (
	"sync"

	"github.com/goldpack/exchange-core/internal/command"
	"github.com/goldpack/exchange-core/internal/intake"
	"github.com/goldpack/exchange-core/internal/matching"
	"github.com/goldpack/exchange-core/internal/types"
	"github.com/rs/zerolog/log"
)

// Service is the program orchestrator.
type Service struct {
	// mu serializes commands: no two sweeps may interleave their
	// read-modify-write sequences against the same rows.
	mu      sync.Mutex
	intake  *intake.Service
	matcher matching.Matcher
}

// NewService creates the orchestrator over intake and a matcher.
func NewService(intakeSvc *intake.Service, matcher matching.Matcher) *Service {
	return &Service{
		intake:  intakeSvc,
		matcher: matcher,
	}
}

// Handle processes one user message as a single sequential unit of work and
// returns the outbound directives for the transport layer.
func (s *Service) Handle(traderID, messageID int64, text string, reply *command.ReplyTarget) []types.Directive {
	s.mu.Lock()
	defer s.mu.Unlock()

	directive, createdOrder := s.intake.Submit(traderID, messageID, text, reply)
	out := []types.Directive{directive}

	if !createdOrder {
		return out
	}

	notifications, err := s.matcher.Sweep()
	if err != nil {
		log.Error().Err(err).Msg("matching sweep failed")
		return append(out, types.NewDirective(false, types.ReasonInternalError, "", types.DeliveryNone))
	}
	return append(out, notifications...)
}
