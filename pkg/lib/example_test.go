package lib_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slok/conveyor/pkg/lib"
)

// This example shows how to execute the stored tasks with a custom handler,
// using the memory store.
func Example_runOnce() {
	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{
		HandlerName: "mailer",
		Store:       lib.StoreMemory,
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	client.RegisterType("email", func(ctx context.Context, t *lib.Task) error {
		var p struct {
			To string `json:"to"`
		}
		if err := t.DecodePayload(&p); err != nil {
			return err
		}
		fmt.Printf("Sending email to %s\n", p.To)
		return t.Complete(ctx)
	})

	task, err := client.Enqueue(ctx, lib.EnqueueOpts{
		Type:    "email",
		Owner:   "alice",
		Payload: json.RawMessage(`{"to":"bob@example.com"}`),
	})
	if err != nil {
		panic(err)
	}

	// Run a single poll cycle.
	if err := client.RunOnce(ctx); err != nil {
		panic(err)
	}

	task, err = client.GetTask(ctx, task.ID)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Task status: %s\n", task.Status)

	// Output:
	// Sending email to bob@example.com
	// Task status: done
}

// This example shows how to check SDK errors.
func Example_errors() {
	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{
		HandlerName: "mailer",
		Store:       lib.StoreMemory,
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	_, err = client.GetTask(ctx, "missing")
	if errors.Is(err, lib.ErrNotFound) {
		fmt.Println("Task not found")
	}

	_, err = client.Enqueue(ctx, lib.EnqueueOpts{Type: "email"})
	if errors.Is(err, lib.ErrNotValid) {
		fmt.Println("Task not valid")
	}

	// Output:
	// Task not found
	// Task not valid
}
