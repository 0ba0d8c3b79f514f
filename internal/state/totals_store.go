/*

This file manages the persistent ledger totals: total shares, the three tier weight
sums, the last finalized epoch and the capital value recorded with the last committed
operation. They live in a single-row table so a restart can verify restored positions
against them.

*/

package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/tierpool/internal/types"
)

// ensureTotalsRow inserts the totals row if it doesn't exist.
func ensureTotalsRow(q querier) error {
	_, err := q.Exec(`INSERT INTO ledger_totals (id) VALUES (1) ON CONFLICT (id) DO NOTHING;`)
	if err != nil {
		return fmt.Errorf("failed to ensure ledger_totals row: %w", err)
	}
	return nil
}

// GetLedgerTotals retrieves the persisted ledger totals.
func GetLedgerTotals() (types.Totals, error) {
	if DB == nil {
		return types.Totals{}, ErrNotInitialized
	}
	start := time.Now()
	totals, _, err := loadTotals(DB)
	observe("get_ledger_totals", start, err)
	return totals, err
}

func loadTotals(q querier) (types.Totals, sdkmath.Int, error) {
	if err := ensureTotalsRow(q); err != nil {
		return types.Totals{}, sdkmath.Int{}, err
	}

	query := `
		SELECT total_shares::TEXT, weight_conservative::TEXT, weight_balanced::TEXT,
		       weight_aggressive::TEXT, last_finalized_epoch, total_assets::TEXT
		FROM ledger_totals WHERE id = 1;`

	var total, wC, wB, wA, assetsRaw string
	var lastFinalized int64
	err := q.QueryRow(query).Scan(&total, &wC, &wB, &wA, &lastFinalized, &assetsRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// This should not happen due to ensureTotalsRow
			log.Warn().Msg("No ledger totals row found, starting from zero")
			zero := sdkmath.ZeroInt()
			return types.Totals{TotalShares: zero, Weights: [types.NumStrategies]sdkmath.Int{zero, zero, zero}}, zero, nil
		}
		return types.Totals{}, sdkmath.Int{}, fmt.Errorf("failed to get ledger totals: %w", err)
	}

	var totals types.Totals
	if totals.TotalShares, err = parseAmount(total); err != nil {
		return types.Totals{}, sdkmath.Int{}, err
	}
	for i, raw := range []string{wC, wB, wA} {
		if totals.Weights[i], err = parseAmount(raw); err != nil {
			return types.Totals{}, sdkmath.Int{}, err
		}
	}
	totals.LastFinalizedEpoch = uint64(lastFinalized)

	assets, err := parseAmount(assetsRaw)
	if err != nil {
		return types.Totals{}, sdkmath.Int{}, err
	}
	return totals, assets, nil
}

// saveTotals overwrites the totals row. A nil assets keeps the stored value.
func saveTotals(q querier, totals types.Totals, assets sdkmath.Int) error {
	updateQuery := `
		UPDATE ledger_totals
		SET total_shares = $1,
		    weight_conservative = $2,
		    weight_balanced = $3,
		    weight_aggressive = $4,
		    last_finalized_epoch = $5,
		    total_assets = COALESCE($6::NUMERIC, total_assets),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	var assetsArg any
	if !assets.IsNil() {
		assetsArg = assets.String()
	}

	result, err := q.Exec(updateQuery,
		totals.TotalShares.String(),
		totals.Weights[types.StrategyConservative].String(),
		totals.Weights[types.StrategyBalanced].String(),
		totals.Weights[types.StrategyAggressive].String(),
		int64(totals.LastFinalizedEpoch),
		assetsArg,
	)
	if err != nil {
		return fmt.Errorf("failed to update ledger totals: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when saving ledger totals")
	}
	return nil
}

// parseAmount reads a NUMERIC column rendered as text.
func parseAmount(raw string) (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid stored amount %q", raw)
	}
	return amount, nil
}
