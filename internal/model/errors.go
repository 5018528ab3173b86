package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrLocked is returned when the store refuses to mutate a locked task.
	ErrLocked = errors.New("task locked")
	// ErrInvalidTransition is returned when a status change would move a task backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrMalformedPayload is the poll cause of a claimed task whose payload is not JSON.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrInvalidStatus is the poll cause of a claimed task without a known status.
	ErrInvalidStatus = errors.New("no valid status")
)
