package model

import "time"

// ResolutionOutcome is what the engine did with a task once its handler returned.
type ResolutionOutcome string

const (
	// ResolutionKept means the handler already resolved the task and the engine left it as is.
	ResolutionKept ResolutionOutcome = "kept"
	// ResolutionCompleted means the engine set the task as done and locked it.
	ResolutionCompleted ResolutionOutcome = "completed"
	// ResolutionDenied means the engine set the task as denied and locked it.
	ResolutionDenied ResolutionOutcome = "denied"
)

// Resolution is the final state of an executed task.
type Resolution struct {
	Outcome ResolutionOutcome
	Status  TaskStatus
	Locked  bool
	// HandlerErr is the error returned by the handler (or its recovered panic).
	HandlerErr error
	// Err is set when the engine could not write the resolution to the store.
	Err error
	// Duration is the time the handler took.
	Duration time.Duration
}
