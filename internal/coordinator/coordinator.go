// Package coordinator is the turn-taking state machine for the shared
// washing machine. It is pure: every operation takes the latest snapshot
// of the persisted state plus an action and computes the transition to
// commit, without touching the store, the clock beyond the instant it is
// handed, or any other I/O. Atomicity of the resulting write is the
// store's job (conditional commit on the status version).
package coordinator

import (
	"time"

	"github.com/waschgehtab/washd/internal/models"
	"github.com/waschgehtab/washd/internal/notify"
	"github.com/waschgehtab/washd/internal/queue"
)

// Transition is the outcome of a validated action: the status record to
// write (version already advanced), at most one queue mutation, and the
// notification intents the commit should dispatch on success. A NoOp
// transition commits nothing and dispatches nothing.
type Transition struct {
	Status  models.MachineStatus
	Queue   models.QueueMutation
	Intents []notify.Intent
	NoOp    bool
}

func advance(snap models.Snapshot, now time.Time) models.MachineStatus {
	return models.MachineStatus{
		Version:   snap.Status.Version + 1,
		UpdatedAt: now.UTC(),
	}
}

func makeTimer(durationMs int64, now time.Time) *models.Timer {
	if durationMs <= 0 {
		return nil
	}
	return &models.Timer{StartTime: now.UnixMilli(), DurationMs: durationMs}
}

// StartWash claims a free machine for user. The advisory timer is attached
// here or never; durationMs <= 0 means no timer.
func StartWash(snap models.Snapshot, user models.UserRef, durationMs int64, now time.Time) (Transition, error) {
	if snap.Status.Phase != models.PhaseFree {
		return Transition{}, ErrNotFree
	}
	st := advance(snap, now)
	st.Phase = models.PhaseBusy
	st.Holder = &user
	st.Timer = makeTimer(durationMs, now)
	return Transition{Status: st}, nil
}

// FinishWash ends the holder's turn. With a non-empty queue the machine
// pauses on the earliest entry, which stays in the queue until accepted;
// with an empty queue it goes straight back to free. The head lookup is
// paired with the phase transition in one conditional commit, so a
// concurrent join or leave either lands before the snapshot version (the
// commit is rejected as stale) or is serialized after it.
func FinishWash(snap models.Snapshot, user models.UserRef, now time.Time) (Transition, error) {
	if snap.Status.Phase != models.PhaseBusy {
		return Transition{}, ErrWrongPhase
	}
	if snap.Status.Holder == nil || snap.Status.Holder.UserID != user.UserID {
		return Transition{}, ErrNotHolder
	}

	st := advance(snap, now)
	head, ok := queue.PeekHead(snap.Queue)
	if !ok {
		st.Phase = models.PhaseFree
		return Transition{Status: st}, nil
	}

	st.Phase = models.PhasePaused
	st.Handoff = &models.Handoff{
		Previous: *snap.Status.Holder,
		Next: models.Candidate{
			EntryID:     head.ID,
			UserID:      head.UserID,
			DisplayName: head.DisplayName,
		},
	}
	return Transition{
		Status:  st,
		Intents: decideNotifications(snap.Status, st),
	}, nil
}

// AcceptHandoff is the explicit confirmation by the designated candidate.
// Their queue entry is consumed atomically with the transition to busy.
func AcceptHandoff(snap models.Snapshot, user models.UserRef, durationMs int64, now time.Time) (Transition, error) {
	if snap.Status.Phase != models.PhasePaused || snap.Status.Handoff == nil {
		// The commit path refuses to persist a paused status without a
		// handoff, but reads are not validated, so a corrupt record is
		// rejected here rather than dereferenced.
		return Transition{}, ErrWrongPhase
	}
	next := snap.Status.Handoff.Next
	if next.UserID != user.UserID {
		return Transition{}, ErrNotEligible
	}

	st := advance(snap, now)
	st.Phase = models.PhaseBusy
	st.Holder = &models.UserRef{UserID: next.UserID, DisplayName: next.DisplayName}
	st.Timer = makeTimer(durationMs, now)
	return Transition{
		Status: st,
		Queue:  models.QueueMutation{RemoveID: next.EntryID},
	}, nil
}

// JoinQueue appends a waiting request. Always allowed, in every phase,
// including for users already queued — duplicates are permitted and each
// entry is independently removable. ID and Seq are assigned by the store
// at commit time.
func JoinQueue(snap models.Snapshot, user models.UserRef, now time.Time) (Transition, error) {
	st := advance(snap, now)
	st.Phase = snap.Status.Phase
	st.Holder = snap.Status.Holder
	st.Handoff = snap.Status.Handoff
	st.Timer = snap.Status.Timer
	return Transition{
		Status: st,
		Queue: models.QueueMutation{
			Append: &models.QueueEntry{
				UserID:      user.UserID,
				DisplayName: user.DisplayName,
				EnqueuedAt:  now.UnixMilli(),
			},
		},
	}, nil
}

// LeaveQueue removes the caller's own entry. An absent entry is treated as
// already removed: the operation reports success without committing
// anything, which makes a double leave indistinguishable from a single one.
func LeaveQueue(snap models.Snapshot, user models.UserRef, entryID string, now time.Time) (Transition, error) {
	entry, ok := queue.Find(snap.Queue, entryID)
	if !ok {
		return Transition{NoOp: true}, nil
	}
	if entry.UserID != user.UserID {
		return Transition{}, ErrNotEligible
	}

	st := advance(snap, now)
	st.Phase = snap.Status.Phase
	st.Holder = snap.Status.Holder
	st.Handoff = snap.Status.Handoff
	st.Timer = snap.Status.Timer
	return Transition{
		Status: st,
		Queue:  models.QueueMutation{RemoveID: entryID},
	}, nil
}
