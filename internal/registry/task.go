package registry

import (
	"time"
)

// TaskStatus identifies a task lifecycle state.
type TaskStatus string

const (
	// TaskStatusWaiting marks a task with at least one dependency not yet completed.
	TaskStatusWaiting TaskStatus = "waiting"
	// TaskStatusQueued marks a task whose dependencies are satisfied and which has been handed to the durable queue.
	TaskStatusQueued TaskStatus = "queued"
	// TaskStatusProcessing marks a task currently held by an executor.
	TaskStatusProcessing TaskStatus = "processing"
	// TaskStatusCompleted marks a task whose work finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed marks a task whose work reported an application-level failure.
	TaskStatusFailed TaskStatus = "failed"
)

// allowedStatusTransitions encodes the one-directional task state machine.
// The queued to waiting edge exists only for reverting an enqueue failure.
var allowedStatusTransitions = map[TaskStatus]map[TaskStatus]struct{}{
	TaskStatusWaiting: {
		TaskStatusQueued: {},
	},
	TaskStatusQueued: {
		TaskStatusWaiting:    {},
		TaskStatusProcessing: {},
	},
	TaskStatusProcessing: {
		TaskStatusCompleted: {},
		TaskStatusFailed:    {},
	},
}

// IsTerminal reports whether the status permits no further transitions.
func (status TaskStatus) IsTerminal() bool {
	return status == TaskStatusCompleted || status == TaskStatusFailed
}

// CanTransitionTo reports whether the state machine permits moving to the requested status.
func (status TaskStatus) CanTransitionTo(nextStatus TaskStatus) bool {
	permittedTargets, statusKnown := allowedStatusTransitions[status]
	if !statusKnown {
		return false
	}
	_, transitionPermitted := permittedTargets[nextStatus]
	return transitionPermitted
}

// Task captures a unit of work and its lifecycle state.
//
// ID, Message, Dependencies, and RequiresOrdering are immutable after creation;
// only Status changes, and only through Store.CompareAndSetStatus.
type Task struct {
	ID               string     `json:"id"`
	Message          string     `json:"message"`
	Dependencies     []string   `json:"dependencies"`
	RequiresOrdering bool       `json:"requires_ordering"`
	Status           TaskStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
}
