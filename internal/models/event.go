package models

import "time"

// TransitionKind names a lifecycle transition. The values double as the
// live push event names on the wire.
type TransitionKind string

const (
	TransitionCreated    TransitionKind = "outpass:created"
	TransitionApproved   TransitionKind = "outpass:approved"
	TransitionRejected   TransitionKind = "outpass:rejected"
	TransitionCancelled  TransitionKind = "outpass:cancelled"
	TransitionCheckedOut TransitionKind = "outpass:checked_out"
	TransitionCheckedIn  TransitionKind = "outpass:checked_in"
	TransitionOverdue    TransitionKind = "outpass:overdue"
)

// TransitionEvent is emitted by the lifecycle engine after a transition
// has committed. It is never persisted directly; it is observable only
// through the notification records and live pushes derived from it.
type TransitionEvent struct {
	Kind       TransitionKind `json:"kind"`
	Outpass    Outpass        `json:"outpass"`
	ActorID    string         `json:"actor_id"`
	OccurredAt time.Time      `json:"occurred_at"`
}
