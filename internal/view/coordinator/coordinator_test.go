package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/config"
	"github.com/brewline/brewline/internal/entity"
	"github.com/brewline/brewline/internal/status"
	"github.com/brewline/brewline/internal/view/store"
	"github.com/brewline/brewline/pkg/errorbank"
)

type fakeRemote struct {
	mu       sync.Mutex
	calls    int
	expected status.Status
	target   status.Status
	err      error
	release  chan struct{}
}

func (f *fakeRemote) UpdateStatus(ctx context.Context, _ uuid.UUID, expected, target status.Status) error {
	f.mu.Lock()
	f.calls++
	f.expected = expected
	f.target = target
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func seedStore(st status.Status) (*store.Store, uuid.UUID) {
	s := store.New()
	id := uuid.New()
	s.ApplyInitialSnapshot([]entity.Order{{
		ID:        id,
		UserID:    uuid.New(),
		Items:     []entity.OrderItem{{MenuItemID: uuid.New(), Quantity: 1, UnitPrice: 3.0}},
		Status:    st,
		CreatedAt: time.Now(),
	}})
	return s, id
}

func TestOptimisticRoundTripSuccess(t *testing.T) {
	s, id := seedStore(status.Pending)
	remote := &fakeRemote{}
	cfg := config.Config{Mutation: config.Mutation{Timeout: time.Second}}
	c := NewFromConfig(s, remote, cfg, zap.NewNop())

	err := c.RequestStatusChange(context.Background(), id, status.Preparing)
	require.NoError(t, err)

	got, _ := s.Get(id)
	assert.Equal(t, status.Preparing, got.Status)
	assert.False(t, s.InFlight(id))
	assert.Equal(t, status.Pending, remote.expected, "CAS must use the pre-change status")
	assert.Equal(t, status.Preparing, remote.target)
}

func TestConflictRevertsOptimisticState(t *testing.T) {
	s, id := seedStore(status.Pending)
	remote := &fakeRemote{err: errorbank.Conflict("lost the race")}
	c := New(s, remote, time.Second, zap.NewNop())

	err := c.RequestStatusChange(context.Background(), id, status.Preparing)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindConflict))

	got, _ := s.Get(id)
	assert.Equal(t, status.Pending, got.Status, "conflict must visibly revert")
	assert.False(t, s.InFlight(id))
}

func TestRemoteFailureRevertsAndWraps(t *testing.T) {
	s, id := seedStore(status.Preparing)
	remote := &fakeRemote{err: errors.New("connection reset")}
	c := New(s, remote, time.Second, zap.NewNop())

	err := c.RequestStatusChange(context.Background(), id, status.Ready)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInternal))

	got, _ := s.Get(id)
	assert.Equal(t, status.Preparing, got.Status)
}

func TestMissingOrder(t *testing.T) {
	s := store.New()
	c := New(s, &fakeRemote{}, time.Second, zap.NewNop())

	err := c.RequestStatusChange(context.Background(), uuid.New(), status.Preparing)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestInvalidTransitionHasNoSideEffects(t *testing.T) {
	s, id := seedStore(status.Ready)
	remote := &fakeRemote{}
	c := New(s, remote, time.Second, zap.NewNop())

	err := c.RequestStatusChange(context.Background(), id, status.Pending)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
	assert.Zero(t, remote.callCount(), "no remote call on invalid transition")

	got, _ := s.Get(id)
	assert.Equal(t, status.Ready, got.Status)
	assert.False(t, s.InFlight(id))
}

func TestBusyGuardRejectsSecondRequest(t *testing.T) {
	s, id := seedStore(status.Pending)
	remote := &fakeRemote{release: make(chan struct{})}
	c := New(s, remote, 5*time.Second, zap.NewNop())

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.RequestStatusChange(context.Background(), id, status.Preparing)
	}()

	// Wait for the first mutation to reach the remote call.
	require.Eventually(t, func() bool { return remote.callCount() == 1 }, time.Second, 5*time.Millisecond)

	err := c.RequestStatusChange(context.Background(), id, status.Cancelled)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindBusy))

	close(remote.release)
	require.NoError(t, <-firstDone)

	got, _ := s.Get(id)
	assert.Equal(t, status.Preparing, got.Status)
}

func TestLockReleasedAfterSettle(t *testing.T) {
	s, id := seedStore(status.Pending)
	remote := &fakeRemote{}
	c := New(s, remote, time.Second, zap.NewNop())

	require.NoError(t, c.RequestStatusChange(context.Background(), id, status.Preparing))
	require.NoError(t, c.RequestStatusChange(context.Background(), id, status.Ready))
	require.NoError(t, c.RequestStatusChange(context.Background(), id, status.Collected))

	got, _ := s.Get(id)
	assert.Equal(t, status.Collected, got.Status)
	assert.Equal(t, 3, remote.callCount())
}

func TestFullLifecycleWalkRejectsIllegalDetours(t *testing.T) {
	s, id := seedStore(status.Pending)
	remote := &fakeRemote{}
	c := New(s, remote, time.Second, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.RequestStatusChange(ctx, id, status.Preparing))
	require.NoError(t, c.RequestStatusChange(ctx, id, status.Ready))

	err := c.RequestStatusChange(ctx, id, status.Pending)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
	err = c.RequestStatusChange(ctx, id, status.Cancelled)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))

	require.NoError(t, c.RequestStatusChange(ctx, id, status.Collected))

	err = c.RequestStatusChange(ctx, id, status.Ready)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInvalidTransition))
}

func TestBusyGuardUnderConcurrency(t *testing.T) {
	s, id := seedStore(status.Pending)
	remote := &fakeRemote{release: make(chan struct{})}
	c := New(s, remote, 5*time.Second, zap.NewNop())

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.RequestStatusChange(context.Background(), id, status.Preparing)
	}()
	require.Eventually(t, func() bool { return remote.callCount() == 1 }, time.Second, 5*time.Millisecond)

	// While the winner is in flight, every concurrent attempt settles as
	// busy or invalid-transition, never as a second remote call.
	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.RequestStatusChange(context.Background(), id, status.Preparing)
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		require.Error(t, err)
		ok := errorbank.IsKind(err, errorbank.KindBusy) || errorbank.IsKind(err, errorbank.KindInvalidTransition)
		assert.True(t, ok, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, remote.callCount())

	close(remote.release)
	require.NoError(t, <-firstDone)
	got, _ := s.Get(id)
	assert.Equal(t, status.Preparing, got.Status)
}
