package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/elys-network/tierpool/internal/types"
)

// ClaimStats represents aggregated claim data
type ClaimStats struct {
	TotalClaims       int        `json:"total_claims"`
	TotalPoints       string     `json:"total_points"`
	ParticipantCount  int        `json:"participant_count"`
	LastClaimedAt     *time.Time `json:"last_claimed_at,omitempty"`
	LastClaimedEpoch  uint64     `json:"last_claimed_epoch"`
	FinalizedEpochs   int        `json:"finalized_epochs"`
	OpenPositionCount int        `json:"open_position_count"`
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 10 // Default limit
	}
	return limit
}

// GetRecentClaims retrieves the most recent point claims.
func GetRecentClaims(limit int) ([]types.ClaimRecord, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	start := time.Now()
	claims, err := queryClaims(`
		SELECT claim_id::TEXT, participant, epoch_index, points::TEXT, cumulative_points::TEXT, claimed_at
		FROM point_claims
		ORDER BY claimed_at DESC, epoch_index DESC
		LIMIT $1`, clampLimit(limit))
	observe("get_recent_claims", start, err)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent claims")
		return nil, err
	}
	return claims, nil
}

// GetParticipantClaims retrieves a participant's claims, newest epoch first.
func GetParticipantClaims(participant types.Participant, limit int) ([]types.ClaimRecord, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	start := time.Now()
	claims, err := queryClaims(`
		SELECT claim_id::TEXT, participant, epoch_index, points::TEXT, cumulative_points::TEXT, claimed_at
		FROM point_claims
		WHERE participant = $1
		ORDER BY epoch_index DESC
		LIMIT $2`, string(participant), clampLimit(limit))
	observe("get_participant_claims", start, err)
	return claims, err
}

// GetClaimsForEpochs retrieves every claim made against the given epochs.
func GetClaimsForEpochs(epochs []uint64) ([]types.ClaimRecord, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	if len(epochs) == 0 {
		return nil, nil
	}
	indexes := make([]int64, len(epochs))
	for i, e := range epochs {
		indexes[i] = int64(e)
	}

	start := time.Now()
	claims, err := queryClaims(`
		SELECT claim_id::TEXT, participant, epoch_index, points::TEXT, cumulative_points::TEXT, claimed_at
		FROM point_claims
		WHERE epoch_index = ANY($1)
		ORDER BY epoch_index ASC, participant ASC`, pq.Array(indexes))
	observe("get_claims_for_epochs", start, err)
	return claims, err
}

// GetEpochHistory retrieves the most recent finalized epochs, newest first.
func GetEpochHistory(limit int) ([]types.EpochRecord, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	start := time.Now()
	epochs, err := loadEpochs(DB, `
		SELECT epoch_index, start_price::TEXT, end_price::TEXT, peak::TEXT, low::TEXT, started, low_set, finalized
		FROM ledger_epochs
		WHERE finalized
		ORDER BY epoch_index DESC
		LIMIT $1`, clampLimit(limit))
	observe("get_epoch_history", start, err)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query epoch history")
		return nil, err
	}
	return epochs, nil
}

// GetClaimStats calculates aggregated claim and ledger statistics.
func GetClaimStats() (*ClaimStats, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}
	start := time.Now()

	stats := &ClaimStats{}
	var lastClaimed sql.NullTime
	var lastEpoch sql.NullInt64
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(points), 0)::TEXT,
			COUNT(DISTINCT participant),
			MAX(claimed_at),
			MAX(epoch_index)
		FROM point_claims`

	err := DB.QueryRow(query).Scan(&stats.TotalClaims, &stats.TotalPoints, &stats.ParticipantCount, &lastClaimed, &lastEpoch)
	if err != nil {
		observe("get_claim_stats", start, err)
		return nil, fmt.Errorf("failed to get claim stats: %w", err)
	}
	if lastClaimed.Valid {
		t := lastClaimed.Time.UTC()
		stats.LastClaimedAt = &t
	}
	if lastEpoch.Valid {
		stats.LastClaimedEpoch = uint64(lastEpoch.Int64)
	}

	err = DB.QueryRow("SELECT COUNT(*) FROM ledger_epochs WHERE finalized").Scan(&stats.FinalizedEpochs)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count finalized epochs")
	}
	err = DB.QueryRow("SELECT COUNT(*) FROM participant_positions").Scan(&stats.OpenPositionCount)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count open positions")
	}

	observe("get_claim_stats", start, nil)
	return stats, nil
}
