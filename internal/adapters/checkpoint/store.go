package checkpoint

import (
	"log/slog"
	"sort"
	"time"

	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
	json "github.com/eleven-am/triageflow/internal/xjson"
)

// Store persists instances as append-only versioned checkpoints. The head row
// tracks the latest version; both are written in one storage transaction so a
// crash can never leave a checkpoint without its head, and two concurrent
// saves for the same instance collide on the head key.
type Store struct {
	storage ports.StoragePort
	logger  *slog.Logger
}

type head struct {
	InstanceID    string    `json:"instance_id"`
	LatestVersion int64     `json:"latest_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewStore(storage ports.StoragePort, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage: storage,
		logger:  logger.With("component", "checkpoint-store"),
	}
}

func (s *Store) Save(instance *domain.Instance) (int64, error) {
	var version int64

	err := s.storage.RunInTransaction(func(tx ports.Transaction) error {
		headKey := domain.InstanceHeadKey(instance.ID)

		var h head
		raw, exists, err := tx.Get(headKey)
		if err != nil {
			return err
		}
		if exists {
			if err := json.Unmarshal(raw, &h); err != nil {
				return domain.NewInternalError("failed to decode instance head", err)
			}
		}

		version = h.LatestVersion + 1
		now := time.Now().UTC()

		instance.Version = version
		instance.UpdatedAt = now

		cp := domain.Checkpoint{
			InstanceID: instance.ID,
			Version:    version,
			Stage:      instance.Stage,
			Instance:   instance,
			CreatedAt:  now,
		}

		cpRaw, err := json.Marshal(cp)
		if err != nil {
			return domain.NewInternalError("failed to serialize checkpoint", err)
		}

		headRaw, err := json.Marshal(head{
			InstanceID:    instance.ID,
			LatestVersion: version,
			UpdatedAt:     now,
		})
		if err != nil {
			return domain.NewInternalError("failed to serialize instance head", err)
		}

		if err := tx.Put(domain.CheckpointKey(instance.ID, version), cpRaw); err != nil {
			return err
		}
		return tx.Put(headKey, headRaw)
	})

	if err != nil {
		if domain.IsTransactionConflict(err) {
			return 0, domain.NewConflictError(instance.ID)
		}
		return 0, err
	}

	s.logger.Debug("checkpoint saved",
		"instance_id", instance.ID,
		"stage", string(instance.Stage),
		"version", version,
	)

	return version, nil
}

func (s *Store) LoadLatest(instanceID string) (*domain.Instance, error) {
	raw, exists, err := s.storage.Get(domain.InstanceHeadKey(instanceID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NewNotFoundError("instance", instanceID)
	}

	var h head
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, domain.NewInternalError("failed to decode instance head", err)
	}

	cpRaw, exists, err := s.storage.Get(domain.CheckpointKey(instanceID, h.LatestVersion))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NewInternalError("head points at missing checkpoint", nil)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(cpRaw, &cp); err != nil {
		return nil, domain.NewInternalError("failed to decode checkpoint", err)
	}

	return cp.Instance, nil
}

func (s *Store) History(instanceID string) ([]domain.Checkpoint, error) {
	entries, err := s.storage.ListByPrefix(domain.CheckpointScanPrefix(instanceID))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.NewNotFoundError("instance", instanceID)
	}

	checkpoints := make([]domain.Checkpoint, 0, len(entries))
	for _, entry := range entries {
		var cp domain.Checkpoint
		if err := json.Unmarshal(entry.Value, &cp); err != nil {
			s.logger.Warn("skipping undecodable checkpoint",
				"key", entry.Key,
				"error", err.Error(),
			)
			continue
		}
		checkpoints = append(checkpoints, cp)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].Version < checkpoints[j].Version
	})

	return checkpoints, nil
}
