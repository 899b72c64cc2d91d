// Package timerwatch observes the advisory countdown. It is purely a
// watcher: expiry never transitions the machine's phase, it only produces
// the "time's up" notifications for the holder and the queued users.
package timerwatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/waschgehtab/washd/internal/coordinator"
	"github.com/waschgehtab/washd/internal/models"
	"github.com/waschgehtab/washd/internal/notify"
)

// Source provides the current snapshot and a change stream. Satisfied by
// *server.Server.
type Source interface {
	Status(ctx context.Context) (models.Snapshot, error)
	Subscribe() (<-chan models.Snapshot, func())
}

// Notifier accepts already-decided intents. Satisfied by *server.Server.
type Notifier interface {
	Notify(ctx context.Context, intents []notify.Intent)
}

type Watcher struct {
	source   Source
	notifier Notifier
	log      *zap.Logger

	// Interval is the tick granularity; defaults to one second.
	Interval time.Duration
	// Now is swappable in tests.
	Now func() time.Time
}

func New(source Source, notifier Notifier, log *zap.Logger) *Watcher {
	return &Watcher{
		source:   source,
		notifier: notifier,
		log:      log,
		Interval: time.Second,
		Now:      time.Now,
	}
}

// Run ticks until ctx is done. Expiry fires once per attached timer.
// Firing is keyed on the timer's StartTime, which is written once when the
// busy state is created and never mutated: queue churn bumps the status
// version while the same timer stays attached, so the version is not a
// usable identity for the timer.
func (w *Watcher) Run(ctx context.Context) {
	snaps, cancel := w.source.Subscribe()
	defer cancel()

	last, err := w.source.Status(ctx)
	if err != nil {
		w.log.Warn("initial status read failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	var firedStart int64 = -1
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			last = snap
		case <-ticker.C:
			if fired := w.check(ctx, last, firedStart); fired {
				firedStart = last.Status.Timer.StartTime
			}
		}
	}
}

// check reports whether expiry intents were emitted for this snapshot.
// firedStart is the StartTime of the timer that already notified.
func (w *Watcher) check(ctx context.Context, snap models.Snapshot, firedStart int64) bool {
	st := snap.Status
	if st.Phase != models.PhaseBusy || st.Timer == nil {
		return false
	}
	if st.Timer.StartTime == firedStart {
		return false
	}
	if !st.Timer.Expired(w.Now()) {
		return false
	}

	intents := coordinator.TimerExpiryIntents(st, snap.Queue)
	w.notifier.Notify(ctx, intents)
	w.log.Info("advisory timer expired",
		zap.String("holder", st.Holder.UserID),
		zap.Int("notified", len(intents)))
	return true
}
