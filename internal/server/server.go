// Package server is the sync adapter around the coordinator: it reads the
// latest snapshot, lets the state machine decide, commits the transition
// conditionally and dispatches whatever notifications the commit earned.
// Nothing is cached between operations — other sessions mutate the store
// concurrently, so every decision starts from a fresh read.
package server

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/waschgehtab/washd/internal/coordinator"
	"github.com/waschgehtab/washd/internal/models"
	"github.com/waschgehtab/washd/internal/notify"
	"github.com/waschgehtab/washd/internal/storage"
)

// ErrNoProfile rejects actions from users who never registered a name.
var ErrNoProfile = errors.New("user has no profile")

// joinRetries bounds the re-read loop for queue operations. Joining and
// leaving have no phase precondition, so rebasing on a fresh snapshot
// after a lost race is always safe; everything else surfaces the conflict.
const joinRetries = 3

type Server struct {
	store  storage.Store
	sink   notify.Sink
	log    *zap.Logger
	tracer trace.Tracer

	// now is swappable in tests.
	now func() time.Time
}

func New(store storage.Store, sink notify.Sink, log *zap.Logger) *Server {
	return &Server{
		store:  store,
		sink:   sink,
		log:    log,
		tracer: otel.Tracer("washd/server"),
		now:    time.Now,
	}
}

// Register stores the user's display name. Profiles are written once at
// registration; the coordinator only ever reads them afterwards.
func (s *Server) Register(ctx context.Context, userID, displayName string) error {
	return s.store.SaveProfile(ctx, models.UserProfile{UserID: userID, DisplayName: displayName})
}

// Status returns the current snapshot.
func (s *Server) Status(ctx context.Context) (models.Snapshot, error) {
	return s.store.Snapshot(ctx)
}

// Subscribe exposes the store's watch stream.
func (s *Server) Subscribe() (<-chan models.Snapshot, func()) {
	return s.store.Subscribe()
}

func (s *Server) user(ctx context.Context, userID string) (models.UserRef, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.UserRef{}, ErrNoProfile
	}
	if err != nil {
		return models.UserRef{}, err
	}
	return models.UserRef{UserID: p.UserID, DisplayName: p.DisplayName}, nil
}

type decision func(snap models.Snapshot, user models.UserRef, now time.Time) (coordinator.Transition, error)

// apply runs one read-decide-commit round trip. A stale commit is returned
// to the caller untouched; the coordinator never retries.
func (s *Server) apply(ctx context.Context, op, userID string, decide decision) (models.Snapshot, *models.QueueEntry, error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("user", userID)))
	defer span.End()

	user, err := s.user(ctx, userID)
	if err != nil {
		return models.Snapshot{}, nil, err
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return models.Snapshot{}, nil, err
	}

	t, err := decide(snap, user, s.now())
	if err != nil {
		return snap, nil, err
	}
	if t.NoOp {
		return snap, nil, nil
	}

	appended, err := s.store.CommitTransition(ctx, snap.Status.Version, t.Status, t.Queue)
	if err != nil {
		return snap, nil, err
	}

	s.dispatch(ctx, t.Intents)
	s.log.Info("transition committed",
		zap.String("op", op),
		zap.String("user", userID),
		zap.String("phase", string(t.Status.Phase)),
		zap.Int64("version", t.Status.Version))

	after, err := s.store.Snapshot(ctx)
	if err != nil {
		return models.Snapshot{}, nil, err
	}
	return after, appended, nil
}

func (s *Server) dispatch(ctx context.Context, intents []notify.Intent) {
	if s.sink == nil {
		return
	}
	for _, in := range intents {
		if err := s.sink.Notify(ctx, in); err != nil {
			// Delivery is fire-and-forget; the transition already
			// committed.
			s.log.Warn("notification delivery failed",
				zap.String("kind", string(in.Kind)),
				zap.String("target", in.TargetUserID),
				zap.Error(err))
		}
	}
}

// StartWash claims a free machine. durationMs <= 0 starts without a timer.
func (s *Server) StartWash(ctx context.Context, userID string, durationMs int64) (models.Snapshot, error) {
	snap, _, err := s.apply(ctx, "startWash", userID, func(snap models.Snapshot, u models.UserRef, now time.Time) (coordinator.Transition, error) {
		return coordinator.StartWash(snap, u, durationMs, now)
	})
	return snap, err
}

// FinishWash ends the caller's turn, pausing on the queue head if any.
func (s *Server) FinishWash(ctx context.Context, userID string) (models.Snapshot, error) {
	snap, _, err := s.apply(ctx, "finishWash", userID, coordinator.FinishWash)
	return snap, err
}

// AcceptHandoff confirms the hand-off as the designated candidate.
func (s *Server) AcceptHandoff(ctx context.Context, userID string, durationMs int64) (models.Snapshot, error) {
	snap, _, err := s.apply(ctx, "acceptHandoff", userID, func(snap models.Snapshot, u models.UserRef, now time.Time) (coordinator.Transition, error) {
		return coordinator.AcceptHandoff(snap, u, durationMs, now)
	})
	return snap, err
}

// JoinQueue appends a waiting request and returns its assigned entry.
func (s *Server) JoinQueue(ctx context.Context, userID string) (models.Snapshot, *models.QueueEntry, error) {
	var (
		snap  models.Snapshot
		entry *models.QueueEntry
		err   error
	)
	for i := 0; i < joinRetries; i++ {
		snap, entry, err = s.apply(ctx, "joinQueue", userID, coordinator.JoinQueue)
		if !errors.Is(err, coordinator.ErrStaleWrite) {
			return snap, entry, err
		}
	}
	return snap, entry, err
}

// LeaveQueue removes the caller's entry; an absent entry is success.
func (s *Server) LeaveQueue(ctx context.Context, userID, entryID string) (models.Snapshot, error) {
	var (
		snap models.Snapshot
		err  error
	)
	for i := 0; i < joinRetries; i++ {
		snap, _, err = s.apply(ctx, "leaveQueue", userID, func(snap models.Snapshot, u models.UserRef, now time.Time) (coordinator.Transition, error) {
			return coordinator.LeaveQueue(snap, u, entryID, now)
		})
		if !errors.Is(err, coordinator.ErrStaleWrite) {
			return snap, err
		}
	}
	return snap, err
}

// Notify forwards already-decided intents to the sink. Used by the timer
// watcher, which observes expiry but owns no delivery channel.
func (s *Server) Notify(ctx context.Context, intents []notify.Intent) {
	s.dispatch(ctx, intents)
}
