package pool

import (
	"github.com/elys-network/tierpool/internal/ledger"
	"github.com/elys-network/tierpool/internal/metrics"
	"github.com/elys-network/tierpool/internal/types"
)

// NewLedgerRecorder counts epochs frozen by each committed operation and then hands
// the changeset to next. A nil next only counts.
func NewLedgerRecorder(next ledger.Recorder) ledger.Recorder {
	return ledger.RecorderFunc(func(cs types.LedgerChangeset) error {
		frozen := 0
		for _, rec := range cs.Epochs {
			if rec.Finalized {
				frozen++
			}
		}
		metrics.RecordEpochsFinalized(frozen)
		if next == nil {
			return nil
		}
		return next.RecordChanges(cs)
	})
}
