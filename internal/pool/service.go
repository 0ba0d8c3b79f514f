package pool

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/tierpool/internal/ledger"
	"github.com/elys-network/tierpool/internal/logger"
	"github.com/elys-network/tierpool/internal/metrics"
	"github.com/elys-network/tierpool/internal/scoring"
	"github.com/elys-network/tierpool/internal/types"
)

// Service is the entry point for every participant action. It owns no state of its
// own: accounting lives in the ledger and claims in the scoring engine.
type Service struct {
	logger zerolog.Logger
	ledger *ledger.Ledger
	engine *scoring.Engine
}

// Config holds the configuration for creating a new Service.
type Config struct {
	Ledger *ledger.Ledger
	Engine *scoring.Engine
}

// NewService creates a new Service with dependency injection.
func NewService(cfg Config) (*Service, error) {
	if err := validateServiceConfig(cfg); err != nil {
		return nil, fmt.Errorf("pool service configuration validation failed: %w", err)
	}

	s := &Service{
		logger: logger.GetForComponent("pool_service"),
		ledger: cfg.Ledger,
		engine: cfg.Engine,
	}

	params := cfg.Ledger.Params()
	s.logger.Info().
		Str("denom", params.Denom).
		Uint64("currentEpoch", cfg.Ledger.CurrentEpoch()).
		Msg("Pool service created")
	return s, nil
}

func validateServiceConfig(cfg Config) error {
	if cfg.Ledger == nil {
		return fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Engine == nil {
		return fmt.Errorf("scoring engine cannot be nil")
	}
	return nil
}

// opLogger returns a logger tagged with a fresh op_id for tracing one action.
func (s *Service) opLogger(op string, p types.Participant) zerolog.Logger {
	return s.logger.With().
		Str("op_id", uuid.New().String()).
		Str("operation", op).
		Str("participant", string(p)).
		Logger()
}

// finish records the outcome of a ledger operation and refreshes the pool gauges.
func (s *Service) finish(log zerolog.Logger, op string, start time.Time, decision *types.RebalanceDecision, err error) {
	metrics.RecordOperation(op, time.Since(start).Seconds(), err)
	if err != nil {
		event := log.Warn()
		if types.IsInvariantViolation(err) || types.KindOf(err) == types.KindUnknown {
			event = log.Error()
		}
		event.Err(err).Str("kind", string(types.KindOf(err))).Msg("Operation rejected")
		return
	}
	if decision != nil {
		metrics.RecordRebalance(*decision)
	}
	if summary, serr := s.ledger.Summary(); serr == nil {
		metrics.UpdateLedger(summary)
	} else {
		log.Warn().Err(serr).Msg("Failed to refresh ledger gauges")
	}
}

// Join deposits amount for p under strategy.
func (s *Service) Join(p types.Participant, amount sdkmath.Int, strategy types.Strategy) (types.JoinResult, error) {
	start := time.Now()
	log := s.opLogger("join", p)
	log.Info().Str("amount", amount.String()).Str("strategy", strategy.String()).Msg("Join requested")

	res, err := s.ledger.Join(p, amount, strategy)
	s.finish(log, "join", start, &res.Rebalance, err)
	if err != nil {
		return types.JoinResult{}, err
	}
	log.Info().
		Str("sharesMinted", res.SharesMinted.String()).
		Str("balance", res.Balance.String()).
		Uint64("epoch", res.Epoch).
		Msg("Join completed")
	return res, nil
}

// Exit burns shares from p's balance and pays out the proportional assets.
func (s *Service) Exit(p types.Participant, shares sdkmath.Int) (types.ExitResult, error) {
	start := time.Now()
	log := s.opLogger("exit", p)
	log.Info().Str("shares", shares.String()).Msg("Exit requested")

	res, err := s.ledger.Exit(p, shares)
	s.finish(log, "exit", start, &res.Rebalance, err)
	if err != nil {
		return types.ExitResult{}, err
	}
	log.Info().
		Str("payout", res.Payout.String()).
		Str("balance", res.Balance.String()).
		Msg("Exit completed")
	return res, nil
}

// ChangeStrategy moves p's whole balance to another tier.
func (s *Service) ChangeStrategy(p types.Participant, strategy types.Strategy) (types.ActionResult, error) {
	start := time.Now()
	log := s.opLogger("change_strategy", p)
	log.Info().Str("strategy", strategy.String()).Msg("Strategy change requested")

	res, err := s.ledger.ChangeStrategy(p, strategy)
	s.finish(log, "change_strategy", start, &res.Rebalance, err)
	if err != nil {
		return types.ActionResult{}, err
	}
	log.Info().Uint64("targetBps", res.Rebalance.TargetBps).Msg("Strategy changed")
	return res, nil
}

// Heartbeat registers p for the live epoch without moving funds.
func (s *Service) Heartbeat(p types.Participant) (types.ActionResult, error) {
	start := time.Now()
	log := s.opLogger("heartbeat", p)

	res, err := s.ledger.Heartbeat(p)
	s.finish(log, "heartbeat", start, &res.Rebalance, err)
	if err != nil {
		return types.ActionResult{}, err
	}
	log.Debug().Uint64("epoch", res.Epoch).Msg("Heartbeat recorded")
	return res, nil
}

// ClaimPoints awards p's points for a finalized epoch.
func (s *Service) ClaimPoints(p types.Participant, epoch uint64) (types.ClaimRecord, error) {
	start := time.Now()
	log := s.opLogger("claim", p)

	rec, err := s.engine.ClaimPoints(p, epoch)
	metrics.RecordOperation("claim", time.Since(start).Seconds(), err)
	if err != nil {
		log.Warn().Err(err).Uint64("epoch", epoch).Str("kind", string(types.KindOf(err))).Msg("Claim rejected")
		return types.ClaimRecord{}, err
	}
	metrics.RecordClaim(rec)
	log.Info().
		Str("claimId", rec.ClaimID).
		Uint64("epoch", epoch).
		Str("points", rec.Points.String()).
		Msg("Claim completed")
	return rec, nil
}
