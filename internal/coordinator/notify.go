package coordinator

import (
	"github.com/waschgehtab/washd/internal/models"
	"github.com/waschgehtab/washd/internal/notify"
)

// MachineID names the one physical machine this deployment coordinates.
// The dryer never made it past the planning stage.
const MachineID = "washer"

// decideNotifications maps a committed phase change to its intents. Only
// the transition into paused notifies anyone: the candidate learns they
// are next, the outgoing holder learns who to hand the key to. Timer
// expiry is time-driven rather than action-driven and is decided by the
// timerwatch observer, not here.
func decideNotifications(before, after models.MachineStatus) []notify.Intent {
	if after.Phase != models.PhasePaused || before.Phase == models.PhasePaused {
		return nil
	}
	h := after.Handoff
	return []notify.Intent{
		{
			TargetUserID: h.Next.UserID,
			Kind:         notify.KindYouAreNext,
			Payload: notify.Payload{
				Machine:      MachineID,
				PreviousName: h.Previous.DisplayName,
			},
		},
		{
			TargetUserID: h.Previous.UserID,
			Kind:         notify.KindHandoffAcknowledged,
			Payload: notify.Payload{
				Machine:  MachineID,
				NextName: h.Next.DisplayName,
			},
		},
	}
}

// TimerExpiryIntents builds the advisory-expiry fan-out for a busy status:
// the holder gets the urgent notice, every queued user the low-urgency one.
// Duplicate queue entries for one user collapse to a single notice.
func TimerExpiryIntents(status models.MachineStatus, entries []models.QueueEntry) []notify.Intent {
	if status.Phase != models.PhaseBusy || status.Holder == nil {
		return nil
	}
	intents := []notify.Intent{{
		TargetUserID: status.Holder.UserID,
		Kind:         notify.KindTimerExpired,
		Payload:      notify.Payload{Machine: MachineID, HolderName: status.Holder.DisplayName},
	}}
	seen := map[string]bool{status.Holder.UserID: true}
	for _, e := range entries {
		if seen[e.UserID] {
			continue
		}
		seen[e.UserID] = true
		intents = append(intents, notify.Intent{
			TargetUserID: e.UserID,
			Kind:         notify.KindTimerExpiredOthers,
			Payload:      notify.Payload{Machine: MachineID, HolderName: status.Holder.DisplayName},
		})
	}
	return intents
}
