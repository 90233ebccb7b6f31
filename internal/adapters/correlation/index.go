package correlation

import (
	"log/slog"
	"time"

	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
	json "github.com/eleven-am/triageflow/internal/xjson"
)

// Index maps the outbound notification's message id back to the instance
// that sent it. The entry is the only link between the two halves of the
// workflow, so registration is exactly-once and entries are never reused.
type Index struct {
	storage ports.StoragePort
	logger  *slog.Logger
}

func NewIndex(storage ports.StoragePort, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		storage: storage,
		logger:  logger.With("component", "correlation-index"),
	}
}

func (i *Index) Register(externalRef, instanceID string) error {
	key := domain.CorrelationKey(externalRef)

	err := i.storage.RunInTransaction(func(tx ports.Transaction) error {
		exists, err := tx.Exists(key)
		if err != nil {
			return err
		}
		if exists {
			return domain.NewDuplicateRefError(externalRef)
		}

		raw, err := json.Marshal(domain.CorrelationEntry{
			ExternalRef: externalRef,
			InstanceID:  instanceID,
			State:       domain.CorrelationPending,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			return domain.NewInternalError("failed to serialize correlation entry", err)
		}

		return tx.Put(key, raw)
	})

	if err != nil {
		if domain.IsTransactionConflict(err) {
			return domain.NewDuplicateRefError(externalRef)
		}
		return err
	}

	i.logger.Debug("correlation registered",
		"external_ref", externalRef,
		"instance_id", instanceID,
	)

	return nil
}

func (i *Index) Resolve(externalRef string) (string, error) {
	raw, exists, err := i.storage.Get(domain.CorrelationKey(externalRef))
	if err != nil {
		return "", err
	}
	if !exists {
		return "", domain.NewNotFoundError("correlation", externalRef)
	}

	var entry domain.CorrelationEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", domain.NewInternalError("failed to decode correlation entry", err)
	}

	return entry.InstanceID, nil
}

func (i *Index) MarkResolved(externalRef string) error {
	key := domain.CorrelationKey(externalRef)

	return i.storage.RunInTransaction(func(tx ports.Transaction) error {
		raw, exists, err := tx.Get(key)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NewNotFoundError("correlation", externalRef)
		}

		var entry domain.CorrelationEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return domain.NewInternalError("failed to decode correlation entry", err)
		}

		if entry.State == domain.CorrelationResolved {
			return nil
		}

		now := time.Now().UTC()
		entry.State = domain.CorrelationResolved
		entry.ResolvedAt = &now

		updated, err := json.Marshal(entry)
		if err != nil {
			return domain.NewInternalError("failed to serialize correlation entry", err)
		}

		return tx.Put(key, updated)
	})
}
