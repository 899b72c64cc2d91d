package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/waschgehtab/washd/internal/coordinator"
	"github.com/waschgehtab/washd/internal/models"
	"github.com/waschgehtab/washd/internal/notify"
	"github.com/waschgehtab/washd/internal/storage"
)

func newServer(t *testing.T) (*Server, *notify.Capture) {
	t.Helper()
	store, err := storage.NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sink := &notify.Capture{}
	srv := New(store, sink, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, srv.Register(ctx, "u-anna", "Anna"))
	require.NoError(t, srv.Register(ctx, "u-ben", "Ben"))
	require.NoError(t, srv.Register(ctx, "u-clara", "Clara"))
	return srv, sink
}

// Scenario A: start from free, finish with empty queue, back to free.
func TestStartFinishRoundTrip(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	snap, err := srv.StartWash(ctx, "u-anna", 0)
	require.NoError(t, err)
	require.Equal(t, models.PhaseBusy, snap.Status.Phase)
	require.Equal(t, "u-anna", snap.Status.Holder.UserID)

	snap, err = srv.FinishWash(ctx, "u-anna")
	require.NoError(t, err)
	require.Equal(t, models.PhaseFree, snap.Status.Phase)
	require.NoError(t, snap.Status.Validate())
}

// Scenario B: B and C queue behind busy A; finish pauses on B; accept
// makes B the holder and consumes only B's entry.
func TestHandoffFlow(t *testing.T) {
	srv, sink := newServer(t)
	ctx := context.Background()

	_, err := srv.StartWash(ctx, "u-anna", 0)
	require.NoError(t, err)

	_, benEntry, err := srv.JoinQueue(ctx, "u-ben")
	require.NoError(t, err)
	require.NotNil(t, benEntry)

	_, claraEntry, err := srv.JoinQueue(ctx, "u-clara")
	require.NoError(t, err)
	require.NotNil(t, claraEntry)

	snap, err := srv.FinishWash(ctx, "u-anna")
	require.NoError(t, err)
	require.Equal(t, models.PhasePaused, snap.Status.Phase)
	require.Equal(t, "u-anna", snap.Status.Handoff.Previous.UserID)
	require.Equal(t, benEntry.ID, snap.Status.Handoff.Next.EntryID)
	// Both entries still queued: the head is referenced, not consumed.
	require.Len(t, snap.Queue, 2)

	intents := sink.Intents()
	require.Len(t, intents, 2)
	kinds := map[notify.Kind]string{}
	for _, in := range intents {
		kinds[in.Kind] = in.TargetUserID
	}
	require.Equal(t, "u-ben", kinds[notify.KindYouAreNext])
	require.Equal(t, "u-anna", kinds[notify.KindHandoffAcknowledged])

	snap, err = srv.AcceptHandoff(ctx, "u-ben", 0)
	require.NoError(t, err)
	require.Equal(t, models.PhaseBusy, snap.Status.Phase)
	require.Equal(t, "u-ben", snap.Status.Holder.UserID)
	require.Len(t, snap.Queue, 1)
	require.Equal(t, claraEntry.ID, snap.Queue[0].ID)
}

// Scenario C at this level: the loser of the race re-reads busy state and
// is rejected with NotFree; the conflict body carries the current truth.
func TestSecondStartRejected(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	_, err := srv.StartWash(ctx, "u-anna", 0)
	require.NoError(t, err)

	snap, err := srv.StartWash(ctx, "u-ben", 0)
	require.ErrorIs(t, err, coordinator.ErrNotFree)
	require.Equal(t, "u-anna", snap.Status.Holder.UserID)
}

// Scenario D: a bystander cannot accept someone else's hand-off.
func TestAcceptByNonCandidateRejected(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	_, err := srv.StartWash(ctx, "u-anna", 0)
	require.NoError(t, err)
	_, _, err = srv.JoinQueue(ctx, "u-ben")
	require.NoError(t, err)
	paused, err := srv.FinishWash(ctx, "u-anna")
	require.NoError(t, err)

	snap, err := srv.AcceptHandoff(ctx, "u-clara", 0)
	require.ErrorIs(t, err, coordinator.ErrNotEligible)
	require.Equal(t, paused.Status.Version, snap.Status.Version)
	require.Equal(t, models.PhasePaused, snap.Status.Phase)
}

// Scenario E: duplicate entries for one user, each removable on its own.
func TestDuplicateQueueEntries(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	_, first, err := srv.JoinQueue(ctx, "u-ben")
	require.NoError(t, err)
	snap, second, err := srv.JoinQueue(ctx, "u-ben")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Len(t, snap.Queue, 2)

	snap, err = srv.LeaveQueue(ctx, "u-ben", first.ID)
	require.NoError(t, err)
	require.Len(t, snap.Queue, 1)
	require.Equal(t, second.ID, snap.Queue[0].ID)
}

func TestLeaveQueueTwiceSameOutcome(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	_, entry, err := srv.JoinQueue(ctx, "u-ben")
	require.NoError(t, err)

	once, err := srv.LeaveQueue(ctx, "u-ben", entry.ID)
	require.NoError(t, err)
	require.Empty(t, once.Queue)

	twice, err := srv.LeaveQueue(ctx, "u-ben", entry.ID)
	require.NoError(t, err)
	require.Empty(t, twice.Queue)
	// The second call committed nothing.
	require.Equal(t, once.Status.Version, twice.Status.Version)
}

func TestActionsRequireProfile(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	_, err := srv.StartWash(ctx, "u-stranger", 0)
	require.ErrorIs(t, err, ErrNoProfile)

	_, _, err = srv.JoinQueue(ctx, "u-stranger")
	require.ErrorIs(t, err, ErrNoProfile)
}

func TestFinishByNonHolderLeavesStateUntouched(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	started, err := srv.StartWash(ctx, "u-anna", 0)
	require.NoError(t, err)

	snap, err := srv.FinishWash(ctx, "u-ben")
	require.ErrorIs(t, err, coordinator.ErrNotHolder)
	require.Equal(t, started.Status.Version, snap.Status.Version)
}

func TestSubscribeSeesTransitions(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	snaps, cancel := srv.Subscribe()
	defer cancel()

	_, err := srv.StartWash(ctx, "u-anna", 0)
	require.NoError(t, err)

	snap := <-snaps
	require.Equal(t, models.PhaseBusy, snap.Status.Phase)
}
