package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/conveyor/internal/model"
)

// JSONPrinter prints task information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type taskOutput struct {
	Sequence    int64           `json:"sequence"`
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      *string         `json:"status"`
	Locked      bool            `json:"locked"`
	HandlerName string          `json:"handler_name"`
	Owner       string          `json:"owner"`
	Description string          `json:"description,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type messageOutput struct {
	Message string `json:"message"`
}

func newTaskOutput(r model.TaskRow) taskOutput {
	out := taskOutput{
		Sequence:    r.Sequence,
		ID:          r.ID,
		Type:        r.Type,
		Status:      r.Status,
		Locked:      r.Locked,
		HandlerName: r.HandlerName,
		Owner:       r.Owner,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
	}

	// Invalid stored payloads can't be embedded as raw JSON.
	if r.Payload != nil {
		if json.Valid(r.Payload) {
			out.Payload = r.Payload
		} else {
			quoted, _ := json.Marshal(string(r.Payload))
			out.Payload = quoted
		}
	}

	return out
}

// PrintTaskList prints tasks in JSON format.
func (j *JSONPrinter) PrintTaskList(tasks []model.TaskRow) error {
	items := make([]taskOutput, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, newTaskOutput(t))
	}
	return j.encode(items)
}

// PrintTask prints a task in JSON format.
func (j *JSONPrinter) PrintTask(task model.TaskRow) error {
	return j.encode(newTaskOutput(task))
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
