// Package printer renders the CLI output.
package printer

import "github.com/slok/conveyor/internal/model"

// Printer knows how to print task information in different formats.
type Printer interface {
	PrintTaskList(tasks []model.TaskRow) error
	PrintTask(task model.TaskRow) error
	PrintMessage(msg string) error
}

// statusOf returns the printable status of a row, stored rows may not have one.
func statusOf(row model.TaskRow) string {
	if row.Status == nil {
		return "-"
	}
	return *row.Status
}
