package pool

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/tierpool/internal/types"
	"github.com/elys-network/tierpool/internal/utils"
)

// PoolSummary is the aggregate read view served over HTTP.
type PoolSummary struct {
	types.LedgerSummary
	SharePriceDisplay string      `json:"share_price_display"`
	PointsDistributed sdkmath.Int `json:"points_distributed"`
}

// ParticipantView is one participant's live standing.
type ParticipantView struct {
	Participant      types.Participant `json:"participant"`
	HasPosition      bool              `json:"has_position"`
	Shares           sdkmath.Int       `json:"shares"`
	Strategy         *types.Strategy   `json:"strategy,omitempty"`
	Value            sdkmath.Int       `json:"value"`
	CumulativePoints sdkmath.Int       `json:"cumulative_points"`
}

// EpochView is a participant's standing in a single epoch.
type EpochView struct {
	Epoch         types.EpochRecord       `json:"epoch"`
	Entry         *types.ParticipantEntry `json:"entry,omitempty"`
	Claim         *types.ClaimRecord      `json:"claim,omitempty"`
	PreviewPoints sdkmath.Int             `json:"preview_points"`
}

// PoolSummary returns the pool-wide view.
func (s *Service) PoolSummary() (PoolSummary, error) {
	summary, err := s.ledger.Summary()
	if err != nil {
		return PoolSummary{}, err
	}
	display, err := utils.FormatFixed(summary.SharePrice, types.ScaleDecimals)
	if err != nil {
		return PoolSummary{}, err
	}
	return PoolSummary{
		LedgerSummary:     summary,
		SharePriceDisplay: display,
		PointsDistributed: s.engine.TotalDistributed(),
	}, nil
}

// ParticipantView returns p's balance, tier, current value and points.
func (s *Service) ParticipantView(p types.Participant) (ParticipantView, error) {
	view := ParticipantView{
		Participant:      p,
		Shares:           sdkmath.ZeroInt(),
		Value:            sdkmath.ZeroInt(),
		CumulativePoints: s.engine.CumulativePoints(p),
	}
	pos, ok := s.ledger.Position(p)
	if !ok {
		return view, nil
	}
	value, err := s.ledger.PreviewExit(pos.Shares)
	if err != nil {
		return ParticipantView{}, err
	}
	strategy := pos.Strategy
	view.HasPosition = true
	view.Shares = pos.Shares
	view.Strategy = &strategy
	view.Value = value
	return view, nil
}

// Epoch returns an epoch record. Epochs never touched by any operation are absent.
func (s *Service) Epoch(index uint64) (types.EpochRecord, error) {
	rec, ok := s.ledger.Epoch(index)
	if !ok {
		return types.EpochRecord{}, types.ErrEpochNotFound.Wrapf("epoch %d", index)
	}
	return rec, nil
}

// EpochView returns p's entry, claim and claimable points for epoch.
func (s *Service) EpochView(p types.Participant, epoch uint64) (EpochView, error) {
	rec, ok := s.ledger.Epoch(epoch)
	if !ok {
		rec = types.NewEpochRecord(epoch)
	}
	view := EpochView{Epoch: rec, PreviewPoints: s.engine.PreviewPoints(p, epoch)}
	if entry, ok := s.ledger.Entry(p, epoch); ok {
		view.Entry = &entry
	}
	if claim, ok := s.engine.Claim(p, epoch); ok {
		view.Claim = &claim
	}
	return view, nil
}

// Snapshots returns the full ledger and claim state.
func (s *Service) Snapshots() (types.LedgerSnapshot, types.ScoringSnapshot) {
	return s.ledger.Snapshot(), s.engine.Snapshot()
}
