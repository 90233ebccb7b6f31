package ports

import (
	"github.com/eleven-am/triageflow/internal/domain"
)

// CheckpointStore persists immutable, versioned instance snapshots. Save is
// atomic and durable before it returns; versions are monotonic per instance
// and a concurrent save for the same instance is rejected with a conflict
// error.
type CheckpointStore interface {
	Save(instance *domain.Instance) (version int64, err error)
	LoadLatest(instanceID string) (*domain.Instance, error)
	History(instanceID string) ([]domain.Checkpoint, error)
}

// CorrelationIndex maps external refs back to paused instances.
type CorrelationIndex interface {
	Register(externalRef, instanceID string) error
	Resolve(externalRef string) (instanceID string, err error)
	MarkResolved(externalRef string) error
}

// DecisionLedger records the human decision exactly once per instance.
type DecisionLedger interface {
	// Record inserts the record if none exists yet and reports whether
	// this call performed the insert.
	Record(record *domain.DecisionRecord) (inserted bool, err error)
	Get(instanceID string) (*domain.DecisionRecord, error)
}
