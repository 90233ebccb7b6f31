package ledger

import (
	"log/slog"

	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
	json "github.com/eleven-am/triageflow/internal/xjson"
)

// Ledger records the human decision for an instance exactly once. A second
// insert for the same instance is a no-op; the caller learns whether its
// insert won, which is how duplicate decision events are detected.
type Ledger struct {
	storage ports.StoragePort
	logger  *slog.Logger
}

func NewLedger(storage ports.StoragePort, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		storage: storage,
		logger:  logger.With("component", "decision-ledger"),
	}
}

func (l *Ledger) Record(record *domain.DecisionRecord) (bool, error) {
	key := domain.DecisionKey(record.InstanceID)
	inserted := false

	err := l.storage.RunInTransaction(func(tx ports.Transaction) error {
		exists, err := tx.Exists(key)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		raw, err := json.Marshal(record)
		if err != nil {
			return domain.NewInternalError("failed to serialize decision record", err)
		}

		inserted = true
		return tx.Put(key, raw)
	})

	if err != nil {
		if domain.IsTransactionConflict(err) {
			// Lost the race to a concurrent duplicate; the record exists.
			return false, nil
		}
		return false, err
	}

	if inserted {
		l.logger.Debug("decision recorded",
			"instance_id", record.InstanceID,
			"decision", string(record.Decision),
		)
	}

	return inserted, nil
}

func (l *Ledger) Get(instanceID string) (*domain.DecisionRecord, error) {
	raw, exists, err := l.storage.Get(domain.DecisionKey(instanceID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NewNotFoundError("decision", instanceID)
	}

	var record domain.DecisionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.NewInternalError("failed to decode decision record", err)
	}

	return &record, nil
}
