package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewline/brewline/internal/entity"
	"github.com/brewline/brewline/internal/feed"
	"github.com/brewline/brewline/internal/status"
)

func order(id uuid.UUID, st status.Status, createdAt time.Time) entity.Order {
	return entity.Order{
		ID:        id,
		UserID:    uuid.New(),
		Items:     []entity.OrderItem{{MenuItemID: uuid.New(), Quantity: 2, UnitPrice: 4.2}},
		Status:    st,
		CreatedAt: createdAt,
	}
}

func TestReplayHasNoDuplicates(t *testing.T) {
	s := New()
	id := uuid.New()
	now := time.Now()

	first := order(id, status.Pending, now)
	s.ApplyEvent(feed.Event{Kind: feed.KindInsert, Order: first})
	// Duplicate delivery of the same insert overwrites, never duplicates.
	s.ApplyEvent(feed.Event{Kind: feed.KindInsert, Order: first})

	updated := first
	updated.Status = status.Preparing
	s.ApplyEvent(feed.Event{Kind: feed.KindUpdate, Order: updated})

	assert.Equal(t, 1, s.Len())
	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, status.Preparing, got.Status)
}

func TestUpdateForUnknownOrderIsUpserted(t *testing.T) {
	s := New()
	o := order(uuid.New(), status.Ready, time.Now())
	s.ApplyEvent(feed.Event{Kind: feed.KindUpdate, Order: o})

	got, ok := s.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, status.Ready, got.Status)
}

func TestDeleteAbsentIsNoOp(t *testing.T) {
	s := New()
	s.ApplyEvent(feed.Event{Kind: feed.KindDelete, Order: order(uuid.New(), status.Pending, time.Now())})
	assert.Zero(t, s.Len())
}

func TestApplyInitialSnapshotReplacesContents(t *testing.T) {
	s := New()
	stale := order(uuid.New(), status.Pending, time.Now())
	s.ApplyEvent(feed.Event{Kind: feed.KindInsert, Order: stale})

	fresh := order(uuid.New(), status.Ready, time.Now())
	s.ApplyInitialSnapshot([]entity.Order{fresh})

	assert.Equal(t, 1, s.Len())
	_, ok := s.Get(stale.ID)
	assert.False(t, ok)
}

func TestListSortsByCreatedAtDescThenIDAsc(t *testing.T) {
	s := New()
	now := time.Now()

	older := order(uuid.New(), status.Pending, now.Add(-time.Hour))
	newer := order(uuid.New(), status.Pending, now)
	tieA := order(uuid.MustParse("00000000-0000-0000-0000-00000000000a"), status.Pending, now.Add(-time.Minute))
	tieB := order(uuid.MustParse("00000000-0000-0000-0000-00000000000b"), status.Pending, now.Add(-time.Minute))

	for _, o := range []entity.Order{tieB, older, newer, tieA} {
		s.ApplyEvent(feed.Event{Kind: feed.KindInsert, Order: o})
	}

	got := s.List(All)
	require.Len(t, got, 4)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, tieA.ID, got[1].ID)
	assert.Equal(t, tieB.ID, got[2].ID)
	assert.Equal(t, older.ID, got[3].ID)
}

func TestListPredicates(t *testing.T) {
	s := New()
	now := time.Now()
	s.ApplyInitialSnapshot([]entity.Order{
		order(uuid.New(), status.Pending, now),
		order(uuid.New(), status.Preparing, now),
		order(uuid.New(), status.Ready, now),
		order(uuid.New(), status.Collected, now),
		order(uuid.New(), status.Cancelled, now),
	})

	assert.Len(t, s.List(Active), 3)
	assert.Len(t, s.List(Past), 2)
	assert.Len(t, s.List(All), 5)
}

func TestOptimisticApplyConfirmRevert(t *testing.T) {
	s := New()
	id := uuid.New()
	s.ApplyInitialSnapshot([]entity.Order{order(id, status.Pending, time.Now())})

	prev, ok := s.ApplyOptimistic(id, status.Preparing)
	require.True(t, ok)
	assert.Equal(t, status.Pending, prev)
	assert.True(t, s.InFlight(id))

	got, _ := s.Get(id)
	assert.Equal(t, status.Preparing, got.Status)

	// Second optimistic apply on the same id must be refused.
	_, ok = s.ApplyOptimistic(id, status.Ready)
	assert.False(t, ok)

	s.ConfirmOptimistic(id)
	assert.False(t, s.InFlight(id))
	got, _ = s.Get(id)
	assert.Equal(t, status.Preparing, got.Status)
}

func TestRevertRestoresLastConfirmedStatus(t *testing.T) {
	s := New()
	id := uuid.New()
	s.ApplyInitialSnapshot([]entity.Order{order(id, status.Pending, time.Now())})

	_, ok := s.ApplyOptimistic(id, status.Preparing)
	require.True(t, ok)

	s.RevertOptimistic(id)
	got, _ := s.Get(id)
	assert.Equal(t, status.Pending, got.Status)
	assert.False(t, s.InFlight(id))

	// Revert after settle is a no-op.
	s.RevertOptimistic(id)
	got, _ = s.Get(id)
	assert.Equal(t, status.Pending, got.Status)
}

func TestStaleEchoDoesNotClobberOptimisticState(t *testing.T) {
	s := New()
	id := uuid.New()
	base := order(id, status.Pending, time.Now())
	s.ApplyInitialSnapshot([]entity.Order{base})

	_, ok := s.ApplyOptimistic(id, status.Preparing)
	require.True(t, ok)

	// Echo of the pre-change row arrives while the mutation is in flight.
	stale := base
	stale.Status = status.Pending
	s.ApplyEvent(feed.Event{Kind: feed.KindUpdate, Order: stale})

	got, _ := s.Get(id)
	assert.Equal(t, status.Preparing, got.Status)
	assert.True(t, s.InFlight(id), "stale echo must not settle the mutation")
}

func TestAuthoritativeEchoSettlesOptimisticState(t *testing.T) {
	s := New()
	id := uuid.New()
	base := order(id, status.Pending, time.Now())
	s.ApplyInitialSnapshot([]entity.Order{base})

	_, ok := s.ApplyOptimistic(id, status.Preparing)
	require.True(t, ok)

	confirmed := base
	confirmed.Status = status.Preparing
	s.ApplyEvent(feed.Event{Kind: feed.KindUpdate, Order: confirmed})

	assert.False(t, s.InFlight(id))
	got, _ := s.Get(id)
	assert.Equal(t, status.Preparing, got.Status)
}

func TestNewerRemoteStatusWinsOverOptimisticState(t *testing.T) {
	s := New()
	id := uuid.New()
	base := order(id, status.Preparing, time.Now())
	s.ApplyInitialSnapshot([]entity.Order{base})

	// Local view optimistically cancels while the kitchen marks it ready.
	_, ok := s.ApplyOptimistic(id, status.Cancelled)
	require.True(t, ok)

	remote := base
	remote.Status = status.Ready
	s.ApplyEvent(feed.Event{Kind: feed.KindUpdate, Order: remote})

	// Equal-or-newer rank: cancelled shares the terminal rank, ready is
	// older than cancelled, so the local state is kept until the CAS
	// verdict arrives.
	got, _ := s.Get(id)
	assert.Equal(t, status.Cancelled, got.Status)

	// The CAS loses; the coordinator reverts to the last confirmed status.
	s.RevertOptimistic(id)
	got, _ = s.Get(id)
	assert.Equal(t, status.Preparing, got.Status)
}
