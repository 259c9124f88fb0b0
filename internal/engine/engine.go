// Package engine defines the boundary to the external conversation engine:
// an opaque service that owns threads, accepts message appends and composes
// assistant replies asynchronously via runs.
package engine

import "context"

// Status is a provider-reported run status. Providers may report values not
// listed here; anything unknown is treated as non-terminal.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// Terminal reports whether no further status change will occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Failed reports whether the run ended without producing a reply.
func (s Status) Failed() bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Run is the observed state of one asynchronous reply composition. It exists
// only for the duration of an orchestration cycle and is never persisted.
type Run struct {
	ID          string
	Status      Status
	ErrorDetail string
}

// ContentPart is one piece of a thread message. Only "text" parts carry a
// usable reply.
type ContentPart struct {
	Type string
	Text string
}

// ThreadMessage is a message as stored on the engine side. RunID is set on
// assistant messages produced by a run.
type ThreadMessage struct {
	ID      string
	Role    string
	RunID   string
	Content []ContentPart
}

// Engine is the capability consumed from the external conversation service.
type Engine interface {
	// CreateThread allocates a new conversation and returns its id.
	CreateThread(ctx context.Context) (string, error)
	// AppendMessage adds a message to the thread and returns the
	// engine-assigned message id.
	AppendMessage(ctx context.Context, threadID, role, text string) (string, error)
	// StartRun asks the engine to compose a reply to the thread's current
	// state and returns the run id.
	StartRun(ctx context.Context, threadID string) (string, error)
	// RunStatus fetches the current state of a run.
	RunStatus(ctx context.Context, threadID, runID string) (Run, error)
	// ListMessages returns the thread's messages.
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)
}
