// Package audit writes the engine activity trail to session files.
package audit

import (
	"github.com/slok/conveyor/internal/model"
)

// Logger records the engine activity. Audit failures never escalate to the caller
// (except opening a session).
type Logger interface {
	// NewSession starts a new audit file, closing the previous one.
	NewSession() error
	PollingStarted()
	PollingShutdown()
	ExecuteTask(id, taskType string)
	UnhandledType(id, taskType string)
	MarkTask(id string, status model.TaskStatus)
	// Close ends the current session.
	Close() error
}

// Noop audit logger doesn't record anything.
const Noop = noop(0)

type noop int

func (noop) NewSession() error                 { return nil }
func (noop) PollingStarted()                   {}
func (noop) PollingShutdown()                  {}
func (noop) ExecuteTask(string, string)        {}
func (noop) UnhandledType(string, string)      {}
func (noop) MarkTask(string, model.TaskStatus) {}
func (noop) Close() error                      { return nil }
