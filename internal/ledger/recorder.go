package ledger

import (
	"github.com/elys-network/tierpool/internal/types"
)

// Recorder receives the changeset of every committed ledger operation.
// It runs under the ledger lock, after the operation is final. Errors are logged and
// never undo the operation.
type Recorder interface {
	RecordChanges(cs types.LedgerChangeset) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(cs types.LedgerChangeset) error

func (f RecorderFunc) RecordChanges(cs types.LedgerChangeset) error { return f(cs) }

type nopRecorder struct{}

func (nopRecorder) RecordChanges(types.LedgerChangeset) error { return nil }
