// Package notify carries notification intents from the coordinator to a
// delivery sink. The coordinator only ever decides WHO gets WHAT kind of
// notification; message copy and the delivery channel live here.
package notify

import "context"

// Kind classifies a notification intent.
type Kind string

const (
	// KindYouAreNext tells the designated candidate the machine is
	// paused on them and waiting for their confirmation.
	KindYouAreNext Kind = "you_are_next"

	// KindHandoffAcknowledged tells the previous holder who takes over,
	// so they can physically hand the key on.
	KindHandoffAcknowledged Kind = "handoff_acknowledged"

	// KindTimerExpired tells the current holder their advisory countdown
	// reached zero.
	KindTimerExpired Kind = "timer_expired"

	// KindTimerExpiredOthers is the lower-urgency notice to queued users
	// that the current wash should be about done.
	KindTimerExpiredOthers Kind = "timer_expired_others"
)

// Payload is the minimal structured data attached to an intent. Names are
// display names; the machine field identifies the resource.
type Payload struct {
	Machine      string `json:"machine"`
	PreviousName string `json:"previous_name,omitempty"`
	NextName     string `json:"next_name,omitempty"`
	HolderName   string `json:"holder_name,omitempty"`
}

// Intent is a single "notify user U with kind K" request.
type Intent struct {
	TargetUserID string  `json:"target_uid"`
	Kind         Kind    `json:"kind"`
	Payload      Payload `json:"payload"`
}

// Sink accepts intents for delivery. Delivery is fire-and-forget from the
// coordinator's point of view; a sink error is logged by the caller and
// never fails the state transition it accompanies.
type Sink interface {
	Notify(ctx context.Context, intent Intent) error
}
