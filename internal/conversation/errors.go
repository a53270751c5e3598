package conversation

import "errors"

var (
	// ErrNotFound is returned by Store.Load for an unknown id.
	ErrNotFound = errors.New("conversation not found")

	// ErrEmptyID is returned when an operation needs a conversation id.
	ErrEmptyID = errors.New("conversation id is empty")

	// ErrStateNoPendingQuestion reports a reprocessing attempt with no
	// original question queued. It is a state error and never fatal.
	ErrStateNoPendingQuestion = errors.New("no pending original question")

	// ErrNoCallback reports that the reprocessing callback was invalidated
	// or never registered.
	ErrNoCallback = errors.New("reprocessing callback no longer registered")
)
