// Package lib provides a Go SDK to run a conveyor task engine and manage its
// tasks programmatically.
//
// This package allows applications to embed the engine with their own task
// handlers written in Go, instead of running the conveyor CLI binary with the
// built-in handlers.
//
// # Quick Start
//
// Create a client, register the task types it executes and run it:
//
//	client, err := lib.New(ctx, lib.Config{
//	    HandlerName: "mailer",
//	    AutoResolve: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.RegisterType("email", func(ctx context.Context, t *lib.Task) error {
//	    var p struct{ To string `json:"to"` }
//	    if err := t.DecodePayload(&p); err != nil {
//	        return err
//	    }
//	    return send(ctx, p.To)
//	})
//
//	// Blocks until the context is cancelled.
//	client.Run(ctx)
//
// # Stores
//
// Tasks live in a relational store shared by every engine and producer:
//
//   - [StoreSQLite]: A SQLite database file (default ~/.conveyor/conveyor.db).
//   - [StorePostgres]: A PostgreSQL database, set [Config].PostgresURL.
//   - [StoreMemory]: An in-memory store for unit testing, tasks are lost on close.
//
// # Task Lifecycle
//
// Enqueued tasks are new. On every poll cycle the engine claims the new and
// unlocked tasks addressed to its handler name (or to any handler), marks them
// as work and executes the handler registered for their type. The handler can
// resolve the task with [Task.Complete] or [Task.Deny], or leave the resolution
// to the engine:
//
//   - A handler error denies the task.
//   - An unresolved task is completed when [Config].AutoResolve is set and denied otherwise.
//   - A task type without a registered handler is denied without running anything.
//
// # Hooks
//
// Engine events can be observed adding hooks that implement one or more of the
// hook interfaces ([PollingStartedHook], [TaskEndedHook], [PollCauseHook]...).
// [HookFuncs] builds a hook from plain functions:
//
//	client.AddHook(lib.HookFuncs{
//	    HookName: "audit",
//	    TaskEndedFunc: func(ctx context.Context, t lib.TaskSnapshot, r lib.Resolution) error {
//	        fmt.Printf("%s ended: %s\n", t.ID, r.Status)
//	        return nil
//	    },
//	})
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Task does not exist.
//   - [ErrNotValid]: Invalid input (e.g. a payload that is not JSON).
//   - [ErrNotRunning]: The engine is not running.
//   - [ErrAlreadyRunning]: A single cycle was requested on a polling engine.
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines.
package lib
