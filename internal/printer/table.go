package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/slok/conveyor/internal/model"
)

// TablePrinter prints task information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintTaskList prints tasks in a table format.
func (t *TablePrinter) PrintTaskList(tasks []model.TaskRow) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "SEQ\tID\tTYPE\tSTATUS\tLOCKED\tHANDLER\tOWNER\tPAYLOAD\tCREATED")
	for _, r := range tasks {
		locked := "no"
		if r.Locked {
			locked = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Sequence,
			r.ID,
			r.Type,
			statusOf(r),
			locked,
			r.HandlerName,
			r.Owner,
			FormatBytes(len(r.Payload)),
			TimeAgo(r.CreatedAt),
		)
	}

	return nil
}

// PrintTask prints a single task in detail.
func (t *TablePrinter) PrintTask(task model.TaskRow) error {
	fmt.Fprintf(t.writer, "ID:           %s\n", task.ID)
	fmt.Fprintf(t.writer, "Sequence:     %d\n", task.Sequence)
	fmt.Fprintf(t.writer, "Type:         %s\n", task.Type)
	fmt.Fprintf(t.writer, "Status:       %s\n", statusOf(task))
	fmt.Fprintf(t.writer, "Locked:       %t\n", task.Locked)
	fmt.Fprintf(t.writer, "Handler:      %s\n", task.HandlerName)
	fmt.Fprintf(t.writer, "Owner:        %s\n", task.Owner)
	if task.Description != "" {
		fmt.Fprintf(t.writer, "Description:  %s\n", task.Description)
	}
	fmt.Fprintf(t.writer, "Created:      %s\n", FormatTimestamp(task.CreatedAt))
	if task.Payload != nil {
		fmt.Fprintf(t.writer, "Payload:      %s\n", task.Payload)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
