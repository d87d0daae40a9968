package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// slowStore widens the read-modify-write window to expose missing locking.
type slowStore struct {
	*MemoryStore
}

func (s slowStore) Get(ctx context.Context, userID string) (*models.Session, bool, error) {
	time.Sleep(2 * time.Millisecond)
	return s.MemoryStore.Get(ctx, userID)
}

func TestManagerSerializesPerUser(t *testing.T) {
	store := slowStore{NewMemoryStore()}
	manager := NewManager(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "u1", &models.Session{
		Step: models.StepAddAwaitingQuantity,
		Add:  &models.AddDraft{},
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, "u1", func(ctx context.Context) error {
				s, _, err := manager.Store().Get(ctx, "u1")
				if err != nil {
					return err
				}
				s.Add.Quantity++
				return manager.Store().Set(ctx, "u1", s)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, ok, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20, s.Add.Quantity)
	assert.Zero(t, manager.activeLocks())
}

type fakeLocker struct {
	mu       sync.Mutex
	locked   []string
	unlocked []string
	err      error
}

func (f *fakeLocker) Lock(_ context.Context, key string, _ time.Duration) (UnlockFunc, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.locked = append(f.locked, key)
	f.mu.Unlock()
	return func(context.Context) error {
		f.mu.Lock()
		f.unlocked = append(f.unlocked, key)
		f.mu.Unlock()
		return nil
	}, nil
}

func TestManagerUsesDistributedLocker(t *testing.T) {
	locker := &fakeLocker{}
	manager := NewManager(NewMemoryStore(), WithLocker(locker))

	called := false
	err := manager.WithLock(context.Background(), "u2", func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, []string{"u2"}, locker.locked)
	assert.Equal(t, []string{"u2"}, locker.unlocked)
}

func TestManagerLockFailure(t *testing.T) {
	manager := NewManager(NewMemoryStore(), WithLocker(&fakeLocker{err: errors.New("redis down")}))

	err := manager.WithLock(context.Background(), "u3", func(context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.Error(t, err)
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "u", &models.Session{Step: models.StepQueryAwaitingType}))
	s, ok, err := store.Get(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StepQueryAwaitingType, s.Step)
	assert.False(t, s.UpdatedAt.IsZero())

	require.NoError(t, store.Clear(ctx, "u"))
	_, ok, _ = store.Get(ctx, "u")
	assert.False(t, ok)
}

func TestMemoryStoreDoesNotShareDrafts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	draft := &models.AddDraft{Category: "T01", Quantity: 1}
	require.NoError(t, store.Set(ctx, "u", &models.Session{Step: models.StepAddAwaitingQuantity, Add: draft}))
	draft.Quantity = 7

	s, _, err := store.Get(ctx, "u")
	require.NoError(t, err)
	require.NotNil(t, s.Add)
	assert.Equal(t, 1, s.Add.Quantity)

	s.Add.Quantity = 9
	again, _, err := store.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Add.Quantity)
}
