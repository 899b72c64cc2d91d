package models

import (
	"fmt"
	"time"
)

// Phase is the machine's current exclusive-access state.
type Phase string

const (
	PhaseFree   Phase = "free"
	PhaseBusy   Phase = "busy"
	PhasePaused Phase = "paused"
)

// UserRef identifies a registered user on status and queue records.
type UserRef struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"name"`
}

// Candidate is the queue entry designated to take over during a hand-off.
// EntryID points back at the still-pending queue record.
type Candidate struct {
	EntryID     string `json:"id"`
	UserID      string `json:"uid"`
	DisplayName string `json:"name"`
}

// Handoff is the paused-phase record: who just finished and who must confirm.
type Handoff struct {
	Previous UserRef   `json:"previous"`
	Next     Candidate `json:"next"`
}

// Timer is the advisory countdown attached to a busy phase. It has no
// authority over the state machine; expiry only triggers notifications.
// StartTime/DurationMs are epoch/interval milliseconds, set once at the
// moment the busy state is written and never mutated afterwards.
type Timer struct {
	StartTime  int64 `json:"start_time"`
	DurationMs int64 `json:"duration_ms"`
}

// Remaining derives the countdown at the given instant, clamped at zero.
func (t *Timer) Remaining(now time.Time) time.Duration {
	end := t.StartTime + t.DurationMs
	left := end - now.UnixMilli()
	if left <= 0 {
		return 0
	}
	return time.Duration(left) * time.Millisecond
}

// Expired reports whether the countdown has reached zero.
func (t *Timer) Expired(now time.Time) bool {
	return t.Remaining(now) == 0
}

// MachineStatus is the single shared resource record. Version increases by
// one on every committed transition and backs the conditional-write check:
// a transition computed against version N only commits if the persisted
// record is still at version N.
type MachineStatus struct {
	Phase     Phase     `json:"phase"`
	Holder    *UserRef  `json:"holder,omitempty"`
	Handoff   *Handoff  `json:"paused_handoff,omitempty"`
	Timer     *Timer    `json:"timer,omitempty"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FreeStatus returns the initial status record.
func FreeStatus() MachineStatus {
	return MachineStatus{Phase: PhaseFree}
}

// Validate checks the phase/field invariant: holder is set iff busy,
// paused_handoff is set iff paused, never both, and timers only attach
// to a busy phase.
func (s *MachineStatus) Validate() error {
	switch s.Phase {
	case PhaseFree:
		if s.Holder != nil || s.Handoff != nil {
			return fmt.Errorf("free status carries holder or handoff")
		}
		if s.Timer != nil {
			return fmt.Errorf("free status carries a timer")
		}
	case PhaseBusy:
		if s.Holder == nil {
			return fmt.Errorf("busy status without holder")
		}
		if s.Handoff != nil {
			return fmt.Errorf("busy status carries a handoff")
		}
	case PhasePaused:
		if s.Handoff == nil {
			return fmt.Errorf("paused status without handoff")
		}
		if s.Holder != nil {
			return fmt.Errorf("paused status carries a holder")
		}
		if s.Timer != nil {
			return fmt.Errorf("paused status carries a timer")
		}
	default:
		return fmt.Errorf("unknown phase %q", s.Phase)
	}
	return nil
}

// QueueEntry is a waiting request. EnqueuedAt (epoch milliseconds) is the
// sole sort key; Seq is the store-assigned insertion sequence used as a
// stable tiebreak when two entries carry the same timestamp.
type QueueEntry struct {
	ID          string `json:"id"`
	UserID      string `json:"uid"`
	DisplayName string `json:"name"`
	EnqueuedAt  int64  `json:"enqueued_at"`
	Seq         uint64 `json:"seq"`
}

// UserProfile is the registration record under users/<uid>. Set once,
// read-only afterwards as far as the coordinator is concerned.
type UserProfile struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"name"`
}

// QueueMutation is the single queue change paired with a status write.
// At most one of Append/RemoveID is set. For Append the store assigns ID
// and Seq at commit time.
type QueueMutation struct {
	Append   *QueueEntry
	RemoveID string
}

// Snapshot bundles the status record with the queue as read at one moment.
// Every coordinator decision starts from a fresh snapshot; nothing is
// cached across invocations because other sessions mutate concurrently.
type Snapshot struct {
	Status MachineStatus `json:"status"`
	Queue  []QueueEntry  `json:"queue"`
}
