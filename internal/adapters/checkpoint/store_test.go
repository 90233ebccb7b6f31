package checkpoint

import (
	"testing"

	"github.com/eleven-am/triageflow/internal/adapters/storage"
	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := storage.OpenBadger("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return NewStore(s, nil)
}

func TestStore_SaveAssignsMonotonicVersions(t *testing.T) {
	store := newTestStore(t)
	instance := domain.NewInstance("msg-1", "user-1")

	v1, err := store.Save(instance)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1)
	assert.Equal(t, int64(1), instance.Version)

	instance.Stage = domain.StageClassify
	v2, err := store.Save(instance)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2)
}

func TestStore_LoadLatestReturnsNewestCheckpoint(t *testing.T) {
	store := newTestStore(t)
	instance := domain.NewInstance("msg-1", "user-1")

	_, err := store.Save(instance)
	require.NoError(t, err)

	instance.Stage = domain.StageClassify
	instance.Payload.Subject = "hello"
	_, err = store.Save(instance)
	require.NoError(t, err)

	loaded, err := store.LoadLatest(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageClassify, loaded.Stage)
	assert.Equal(t, "hello", loaded.Payload.Subject)
	assert.Equal(t, int64(2), loaded.Version)
}

func TestStore_LoadLatestUnknownInstance(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadLatest("nope")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestStore_HistoryOrderedByVersion(t *testing.T) {
	store := newTestStore(t)
	instance := domain.NewInstance("msg-1", "user-1")

	stages := []domain.Stage{domain.StageExtractContext, domain.StageClassify, domain.StageDetectPriority}
	for _, stage := range stages {
		instance.Stage = stage
		_, err := store.Save(instance)
		require.NoError(t, err)
	}

	history, err := store.History(instance.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	for i, cp := range history {
		assert.Equal(t, int64(i+1), cp.Version)
		assert.Equal(t, stages[i], cp.Stage)
	}
}

func TestStore_HistoryUnknownInstance(t *testing.T) {
	store := newTestStore(t)

	_, err := store.History("nope")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

// conflictStorage forces every transaction to lose as if a concurrent writer
// committed first.
type conflictStorage struct {
	*storage.BadgerStorage
}

func (s *conflictStorage) RunInTransaction(fn func(tx ports.Transaction) error) error {
	return domain.NewTransactionConflictError("txn")
}

func TestStore_SaveMapsConflictToConflictError(t *testing.T) {
	s, err := storage.OpenBadger("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	store := NewStore(&conflictStorage{BadgerStorage: s}, nil)

	_, err = store.Save(domain.NewInstance("msg-1", "user-1"))
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
}

func TestStore_IsolatesInstances(t *testing.T) {
	store := newTestStore(t)

	a := domain.NewInstance("msg-a", "user-1")
	b := domain.NewInstance("msg-b", "user-1")

	_, err := store.Save(a)
	require.NoError(t, err)
	_, err = store.Save(a)
	require.NoError(t, err)
	_, err = store.Save(b)
	require.NoError(t, err)

	loaded, err := store.LoadLatest(b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	assert.Equal(t, "msg-b", loaded.ItemID)
}
