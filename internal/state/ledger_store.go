// ./internal/state/ledger_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/tierpool/internal/types"
)

// querier is the subset shared by *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// RecordChanges writes one committed ledger operation in a single transaction.
// Entries are insert-only; positions with zero shares are removed.
func RecordChanges(cs types.LedgerChangeset) (err error) {
	if DB == nil {
		return ErrNotInitialized
	}
	start := time.Now()
	defer func() { observe("record_changes", start, err) }()

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	for _, rec := range cs.Epochs {
		if err = upsertEpoch(tx, rec, cs.At); err != nil {
			return err
		}
	}
	for _, e := range cs.Entries {
		if err = insertEntry(tx, e, cs.At); err != nil {
			return err
		}
	}
	for _, pos := range cs.Positions {
		if err = savePosition(tx, pos, cs.At); err != nil {
			return err
		}
	}
	if err = ensureTotalsRow(tx); err != nil {
		return err
	}
	if err = saveTotals(tx, cs.Totals, cs.Assets); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger changes: %w", err)
	}

	log.Debug().
		Int("epochs", len(cs.Epochs)).
		Int("entries", len(cs.Entries)).
		Int("positions", len(cs.Positions)).
		Msg("Ledger changes recorded")
	return nil
}

func upsertEpoch(q querier, rec types.EpochRecord, at time.Time) error {
	stmt := `
		INSERT INTO ledger_epochs (
			epoch_index, start_price, end_price, peak, low, started, low_set, finalized, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (epoch_index) DO UPDATE SET
			start_price = EXCLUDED.start_price,
			end_price = EXCLUDED.end_price,
			peak = EXCLUDED.peak,
			low = EXCLUDED.low,
			started = EXCLUDED.started,
			low_set = EXCLUDED.low_set,
			finalized = EXCLUDED.finalized,
			updated_at = EXCLUDED.updated_at
		WHERE NOT ledger_epochs.finalized;`

	_, err := q.Exec(stmt,
		int64(rec.Index), rec.StartPrice.String(), rec.EndPrice.String(),
		rec.Peak.String(), rec.Low.String(),
		rec.Started, rec.LowSet, rec.Finalized, at,
	)
	if err != nil {
		return fmt.Errorf("failed to save epoch %d: %w", rec.Index, err)
	}
	return nil
}

func insertEntry(q querier, e types.ParticipantEntry, at time.Time) error {
	stmt := `
		INSERT INTO participant_epoch_entries (participant, epoch_index, shares, entry_price, strategy, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (participant, epoch_index) DO NOTHING;`

	_, err := q.Exec(stmt, string(e.Participant), int64(e.Epoch), e.Shares.String(), e.EntryPrice.String(), e.Strategy.String(), at)
	if err != nil {
		return fmt.Errorf("failed to save entry for %s epoch %d: %w", e.Participant, e.Epoch, err)
	}
	return nil
}

func savePosition(q querier, pos types.Position, at time.Time) error {
	if pos.Shares.IsNil() || pos.Shares.IsZero() {
		if _, err := q.Exec(`DELETE FROM participant_positions WHERE participant = $1;`, string(pos.Participant)); err != nil {
			return fmt.Errorf("failed to delete position of %s: %w", pos.Participant, err)
		}
		return nil
	}

	stmt := `
		INSERT INTO participant_positions (participant, shares, strategy, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant) DO UPDATE SET
			shares = EXCLUDED.shares,
			strategy = EXCLUDED.strategy,
			updated_at = EXCLUDED.updated_at;`

	if _, err := q.Exec(stmt, string(pos.Participant), pos.Shares.String(), pos.Strategy.String(), at); err != nil {
		return fmt.Errorf("failed to save position of %s: %w", pos.Participant, err)
	}
	return nil
}

// LoadLedgerSnapshot reads the full persisted ledger.
func LoadLedgerSnapshot() (snap types.LedgerSnapshot, err error) {
	if DB == nil {
		return types.LedgerSnapshot{}, ErrNotInitialized
	}
	start := time.Now()
	defer func() { observe("load_ledger_snapshot", start, err) }()

	if snap.Totals, snap.Assets, err = loadTotals(DB); err != nil {
		return types.LedgerSnapshot{}, err
	}
	if snap.Positions, err = loadPositions(DB); err != nil {
		return types.LedgerSnapshot{}, err
	}
	if snap.Epochs, err = loadEpochs(DB, `SELECT epoch_index, start_price::TEXT, end_price::TEXT, peak::TEXT, low::TEXT, started, low_set, finalized FROM ledger_epochs ORDER BY epoch_index ASC`); err != nil {
		return types.LedgerSnapshot{}, err
	}
	if snap.Entries, err = loadEntries(DB); err != nil {
		return types.LedgerSnapshot{}, err
	}

	log.Info().
		Int("positions", len(snap.Positions)).
		Int("epochs", len(snap.Epochs)).
		Int("entries", len(snap.Entries)).
		Msg("Loaded ledger snapshot")
	return snap, nil
}

func loadPositions(q querier) ([]types.Position, error) {
	rows, err := q.Query(`SELECT participant, shares::TEXT, strategy FROM participant_positions ORDER BY participant ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []types.Position
	for rows.Next() {
		var participant, shares, strategy string
		if err := rows.Scan(&participant, &shares, &strategy); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		pos := types.Position{Participant: types.Participant(participant)}
		if pos.Shares, err = parseAmount(shares); err != nil {
			return nil, err
		}
		if pos.Strategy, err = types.ParseStrategy(strategy); err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return positions, nil
}

func loadEpochs(q querier, query string, args ...any) ([]types.EpochRecord, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query epochs: %w", err)
	}
	defer rows.Close()

	var epochs []types.EpochRecord
	for rows.Next() {
		var index int64
		var startPrice, endPrice, peak, low string
		var rec types.EpochRecord
		if err := rows.Scan(&index, &startPrice, &endPrice, &peak, &low, &rec.Started, &rec.LowSet, &rec.Finalized); err != nil {
			return nil, fmt.Errorf("failed to scan epoch row: %w", err)
		}
		rec.Index = uint64(index)
		if rec.StartPrice, err = parseAmount(startPrice); err != nil {
			return nil, err
		}
		if rec.EndPrice, err = parseAmount(endPrice); err != nil {
			return nil, err
		}
		if rec.Peak, err = parseAmount(peak); err != nil {
			return nil, err
		}
		if rec.Low, err = parseAmount(low); err != nil {
			return nil, err
		}
		epochs = append(epochs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return epochs, nil
}

func loadEntries(q querier) ([]types.ParticipantEntry, error) {
	rows, err := q.Query(`
		SELECT participant, epoch_index, shares::TEXT, entry_price::TEXT, strategy
		FROM participant_epoch_entries
		ORDER BY epoch_index ASC, participant ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []types.ParticipantEntry
	for rows.Next() {
		var participant, shares, entryPrice, strategy string
		var epoch int64
		if err := rows.Scan(&participant, &epoch, &shares, &entryPrice, &strategy); err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		e := types.ParticipantEntry{
			Participant: types.Participant(participant),
			Epoch:       uint64(epoch),
			Registered:  true,
		}
		if e.Shares, err = parseAmount(shares); err != nil {
			return nil, err
		}
		if e.EntryPrice, err = parseAmount(entryPrice); err != nil {
			return nil, err
		}
		if e.Strategy, err = types.ParseStrategy(strategy); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}
