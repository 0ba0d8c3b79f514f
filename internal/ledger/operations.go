package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tierpool/internal/rebalance"
	"github.com/elys-network/tierpool/internal/types"
	"github.com/elys-network/tierpool/internal/vault"
)

// operation carries the state shared by the steps of one participant action.
type operation struct {
	j       *journal
	m       vault.CapitalManager
	epoch   uint64
	assets  sdkmath.Int // before the mutation
	price   sdkmath.Int // after the sweep, before the mutation
	post    sdkmath.Int // after the mutation
	outcome types.RebalanceDecision
}

// execute runs the fixed step order: check, sweep, peak/low, mutate, register,
// rebalance. Any error reverts every write the call made.
func (l *Ledger) execute(p types.Participant, check func() error, mutate func(op *operation) error) (*operation, error) {
	m, err := l.capital.Manager()
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(); err != nil {
			return nil, err
		}
	}

	op := &operation{j: l.begin(), m: m, epoch: l.epochAt(l.clock())}
	if err := l.runReverting(p, op, mutate); err != nil {
		return nil, err
	}

	if cs := l.changeset(op.j); !cs.IsEmpty() {
		if assets, err := m.TotalValue(); err == nil {
			cs.Assets = assets
		}
		if err := l.recorder.RecordChanges(cs); err != nil {
			l.logger.Error().Err(err).Str("participant", string(p)).Msg("Failed to record ledger changes")
		}
	}
	return op, nil
}

// runReverting runs the steps and reverts on any error. A panic from a step is reverted
// the same way and reported as a broken invariant so the ledger stays usable.
func (l *Ledger) runReverting(p types.Participant, op *operation, mutate func(op *operation) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Str("participant", string(p)).Msg("Ledger operation panicked, reverting")
			err = types.ErrInvariantBroken.Wrapf("operation panicked: %v", r)
		}
		if err != nil {
			l.revert(op.j)
		}
	}()
	return l.run(p, op, mutate)
}

func (l *Ledger) run(p types.Participant, op *operation, mutate func(op *operation) error) error {
	var err error
	if op.price, op.assets, err = l.priceLocked(op.m); err != nil {
		return err
	}
	l.sweep(op.j, op.epoch, op.price)
	l.observe(op.j, op.epoch, op.price)

	if mutate != nil {
		if err := mutate(op); err != nil {
			return err
		}
	}

	if op.post, _, err = l.priceLocked(op.m); err != nil {
		return err
	}
	l.register(op.j, p, op.epoch, op.post)

	op.outcome, err = l.rebalanceLocked(op.j, op.m)
	return err
}

// rebalanceLocked asks the calculator for a decision against the current weights and
// instructs the capital manager when a move is warranted.
func (l *Ledger) rebalanceLocked(j *journal, m vault.CapitalManager) (types.RebalanceDecision, error) {
	total, err := m.TotalValue()
	if err != nil {
		return types.RebalanceDecision{}, fmt.Errorf("failed to read total value: %w", err)
	}
	secondary, err := m.SecondaryValue()
	if err != nil {
		return types.RebalanceDecision{}, fmt.Errorf("failed to read secondary value: %w", err)
	}

	target := rebalance.ComputeTargetFromWeights(l.weights)
	decision := rebalance.Decide(total, secondary, target)
	if !decision.Needed {
		return decision, nil
	}

	amount := decision.Amount
	switch decision.Direction {
	case types.DirectionToSecondary:
		if err := m.ShiftToSecondary(amount); err != nil {
			return types.RebalanceDecision{}, fmt.Errorf("failed to shift %s to secondary: %w", amount, err)
		}
		l.compensate(j, "shift_to_primary", func() error { return m.ShiftToPrimary(amount) })
	case types.DirectionToPrimary:
		if err := m.ShiftToPrimary(amount); err != nil {
			return types.RebalanceDecision{}, fmt.Errorf("failed to shift %s to primary: %w", amount, err)
		}
		l.compensate(j, "shift_to_secondary", func() error { return m.ShiftToSecondary(amount) })
	}

	l.logger.Debug().
		Str("direction", string(decision.Direction)).
		Str("amount", amount.String()).
		Uint64("currentBps", decision.CurrentBps).
		Uint64("targetBps", decision.TargetBps).
		Msg("Rebalanced capital")
	return decision, nil
}

// Join deposits amount for p under strategy and mints shares against the
// pre-deposit share price.
func (l *Ledger) Join(p types.Participant, amount sdkmath.Int, strategy types.Strategy) (types.JoinResult, error) {
	if amount.IsNil() || amount.LT(l.params.MinDeposit) {
		return types.JoinResult{}, types.ErrBelowMinimumDeposit.Wrapf("got %v, minimum is %s", amount, l.params.MinDeposit)
	}
	if !strategy.IsValid() {
		return types.JoinResult{}, types.ErrInvalidStrategy.Wrapf("%d", strategy)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var minted, balance sdkmath.Int
	op, err := l.execute(p, nil, func(op *operation) error {
		var err error
		if minted, err = l.sharesForDeposit(amount, op.assets); err != nil {
			return err
		}
		// The post-deposit share price must stay representable.
		after, err := op.assets.SafeAdd(amount)
		if err != nil {
			return types.ErrAmountOverflow.Wrapf("deposit %s onto %s assets", amount, op.assets)
		}
		if _, err := mulOverflow(after, types.Scale, "deposit"); err != nil {
			return err
		}
		newTotal, err := l.totalShares.SafeAdd(minted)
		if err != nil {
			return types.ErrAmountOverflow.Wrapf("minting %s onto %s shares", minted, l.totalShares)
		}
		if err := op.m.Deploy(amount); err != nil {
			return fmt.Errorf("failed to deploy %s: %w", amount, err)
		}
		l.compensate(op.j, "release", func() error { return op.m.Release(amount) })

		old := sdkmath.ZeroInt()
		if held, ok := l.shares[p]; ok {
			old = held
			prev := l.strategies[p]
			l.weights[prev] = l.weights[prev].Sub(old)
		}
		balance = old.Add(minted)
		l.weights[strategy] = l.weights[strategy].Add(balance)
		l.totalShares = newTotal
		l.putPosition(op.j, p, balance, strategy)
		return nil
	})
	if err != nil {
		return types.JoinResult{}, err
	}

	l.logger.Debug().
		Str("participant", string(p)).
		Str("amount", amount.String()).
		Str("minted", minted.String()).
		Str("strategy", strategy.String()).
		Msg("Participant joined")

	return types.JoinResult{
		Participant:  p,
		Deposited:    amount,
		SharesMinted: minted,
		Balance:      balance,
		Strategy:     strategy,
		SharePrice:   op.post,
		Epoch:        op.epoch,
		Rebalance:    op.outcome,
	}, nil
}

// Exit burns shares and releases their value at the pre-burn share price.
func (l *Ledger) Exit(p types.Participant, shares sdkmath.Int) (types.ExitResult, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return types.ExitResult{}, types.ErrZeroShares
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var payout, remaining sdkmath.Int
	check := func() error {
		held, ok := l.shares[p]
		if !ok {
			return types.ErrNoPosition.Wrap(string(p))
		}
		if shares.GT(held) {
			return types.ErrInsufficientBalance.Wrapf("burn %s, hold %s", shares, held)
		}
		return nil
	}
	op, err := l.execute(p, check, func(op *operation) error {
		held := l.shares[p]
		strategy := l.strategies[p]
		product, err := mulOverflow(shares, op.assets, "payout")
		if err != nil {
			return err
		}
		payout = product.Quo(l.totalShares)

		if err := op.m.Release(payout); err != nil {
			return fmt.Errorf("failed to release %s: %w", payout, err)
		}
		l.compensate(op.j, "deploy", func() error { return op.m.Deploy(payout) })

		remaining = held.Sub(shares)
		l.weights[strategy] = l.weights[strategy].Sub(held)
		if remaining.IsPositive() {
			l.weights[strategy] = l.weights[strategy].Add(remaining)
		}
		l.totalShares = l.totalShares.Sub(shares)
		l.putPosition(op.j, p, remaining, strategy)
		return nil
	})
	if err != nil {
		return types.ExitResult{}, err
	}

	l.logger.Debug().
		Str("participant", string(p)).
		Str("burned", shares.String()).
		Str("payout", payout.String()).
		Str("remaining", remaining.String()).
		Msg("Participant exited")

	return types.ExitResult{
		Participant:  p,
		SharesBurned: shares,
		Payout:       payout,
		Balance:      remaining,
		SharePrice:   op.post,
		Epoch:        op.epoch,
		Rebalance:    op.outcome,
	}, nil
}

// ChangeStrategy moves p's full weight to another tier. Capital only moves through the
// rebalance check that follows.
func (l *Ledger) ChangeStrategy(p types.Participant, strategy types.Strategy) (types.ActionResult, error) {
	if !strategy.IsValid() {
		return types.ActionResult{}, types.ErrInvalidStrategy.Wrapf("%d", strategy)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	check := func() error {
		if _, ok := l.shares[p]; !ok {
			return types.ErrNoPosition.Wrap(string(p))
		}
		if l.strategies[p] == strategy {
			return types.ErrSameStrategy.Wrap(strategy.String())
		}
		return nil
	}
	op, err := l.execute(p, check, func(op *operation) error {
		held := l.shares[p]
		prev := l.strategies[p]
		l.weights[prev] = l.weights[prev].Sub(held)
		l.weights[strategy] = l.weights[strategy].Add(held)
		l.putPosition(op.j, p, held, strategy)
		return nil
	})
	if err != nil {
		return types.ActionResult{}, err
	}

	l.logger.Debug().Str("participant", string(p)).Str("strategy", strategy.String()).Msg("Strategy changed")

	return types.ActionResult{
		Participant: p,
		Strategy:    strategy,
		SharePrice:  op.post,
		Epoch:       op.epoch,
		Rebalance:   op.outcome,
	}, nil
}

// Heartbeat refreshes p's epoch registration and runs a rebalance check without
// touching balances.
func (l *Ledger) Heartbeat(p types.Participant) (types.ActionResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	check := func() error {
		if _, ok := l.shares[p]; !ok {
			return types.ErrNoPosition.Wrap(string(p))
		}
		return nil
	}
	op, err := l.execute(p, check, nil)
	if err != nil {
		return types.ActionResult{}, err
	}

	return types.ActionResult{
		Participant: p,
		Strategy:    l.strategies[p],
		SharePrice:  op.post,
		Epoch:       op.epoch,
		Rebalance:   op.outcome,
	}, nil
}
