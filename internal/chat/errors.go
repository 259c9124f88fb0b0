package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage rejects whitespace-only input before any engine call.
	ErrEmptyMessage = errors.New("chat: message text is empty")

	// ErrEmptyTitle rejects whitespace-only thread titles.
	ErrEmptyTitle = errors.New("chat: thread title is empty")

	// ErrRunTimeout means the run did not reach a terminal status within the
	// deadline. The remote run is left running.
	ErrRunTimeout = errors.New("chat: timed out waiting for assistant reply")

	// ErrNoReply means the run completed but produced no assistant message.
	ErrNoReply = errors.New("chat: run completed without an assistant reply")

	// ErrUnsupportedContent means the reply exists but is not plain text.
	ErrUnsupportedContent = errors.New("chat: assistant reply is not text")
)

// RunTerminatedError reports a run that ended in a failure status, carrying
// the provider's error detail when one was given.
type RunTerminatedError struct {
	Status string
	Detail string
}

func (e *RunTerminatedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("chat: run %s", e.Status)
	}
	return fmt.Sprintf("chat: run %s: %s", e.Status, e.Detail)
}
