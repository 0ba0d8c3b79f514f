// ./internal/state/claims_store.go
package state

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/tierpool/internal/types"
)

// RecordClaim saves a point claim. A second claim for the same (participant, epoch)
// violates the unique constraint and fails.
func RecordClaim(rec types.ClaimRecord) (err error) {
	if DB == nil {
		return ErrNotInitialized
	}
	start := time.Now()
	defer func() { observe("record_claim", start, err) }()

	query := `
		INSERT INTO point_claims (claim_id, participant, epoch_index, points, cumulative_points, claimed_at)
		VALUES ($1, $2, $3, $4, $5, $6);`

	_, err = DB.Exec(query,
		rec.ClaimID, string(rec.Participant), int64(rec.Epoch),
		rec.Points.String(), rec.CumulativePoints.String(), rec.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save claim %s: %w", rec.ClaimID, err)
	}

	log.Info().
		Str("claim_id", rec.ClaimID).
		Str("participant", string(rec.Participant)).
		Uint64("epoch", rec.Epoch).
		Msg("Point claim saved to database")
	return nil
}

// LoadScoringSnapshot reads every persisted claim.
func LoadScoringSnapshot() (snap types.ScoringSnapshot, err error) {
	if DB == nil {
		return types.ScoringSnapshot{}, ErrNotInitialized
	}
	start := time.Now()
	defer func() { observe("load_scoring_snapshot", start, err) }()

	snap.Claims, err = queryClaims(`
		SELECT claim_id::TEXT, participant, epoch_index, points::TEXT, cumulative_points::TEXT, claimed_at
		FROM point_claims
		ORDER BY epoch_index ASC, participant ASC`)
	if err != nil {
		return types.ScoringSnapshot{}, err
	}

	log.Info().Int("claims", len(snap.Claims)).Msg("Loaded scoring snapshot")
	return snap, nil
}

func queryClaims(query string, args ...any) ([]types.ClaimRecord, error) {
	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var claims []types.ClaimRecord
	for rows.Next() {
		var rec types.ClaimRecord
		var participant, points, cumulative string
		var epoch int64
		if err := rows.Scan(&rec.ClaimID, &participant, &epoch, &points, &cumulative, &rec.ClaimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim row: %w", err)
		}
		rec.Participant = types.Participant(participant)
		rec.Epoch = uint64(epoch)
		if rec.Points, err = parseAmount(points); err != nil {
			return nil, err
		}
		if rec.CumulativePoints, err = parseAmount(cumulative); err != nil {
			return nil, err
		}
		rec.ClaimedAt = rec.ClaimedAt.UTC()
		claims = append(claims, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return claims, nil
}
