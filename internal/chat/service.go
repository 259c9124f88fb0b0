package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hilo-chat/hilo/internal/engine"
)

const DefaultThreadTitle = "New chat"

const (
	defaultPollInterval = 1 * time.Second
	defaultRunTimeout   = 120 * time.Second
)

// ExchangeEvent describes one completed user/assistant exchange.
type ExchangeEvent struct {
	ThreadID           string `json:"thread_id"`
	UserMessageID      string `json:"user_message_id"`
	AssistantMessageID string `json:"assistant_message_id"`
}

// ExchangePublisher receives an event after each committed exchange.
type ExchangePublisher interface {
	PublishExchange(ctx context.Context, ev ExchangeEvent) error
}

// Service drives one full message exchange against the external engine and
// keeps the durable transcript in sync. Safe for concurrent use; sends on the
// same thread are serialized.
type Service struct {
	repo      *Repo
	engine    engine.Engine
	publisher ExchangePublisher // optional

	pollInterval time.Duration
	runTimeout   time.Duration

	locks *threadLocks
}

// NewService wires the orchestrator. publisher may be nil. Non-positive
// durations fall back to the defaults (1s poll, 120s deadline).
func NewService(repo *Repo, eng engine.Engine, publisher ExchangePublisher, pollInterval, runTimeout time.Duration) *Service {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	return &Service{
		repo:         repo,
		engine:       eng,
		publisher:    publisher,
		pollInterval: pollInterval,
		runTimeout:   runTimeout,
		locks:        newThreadLocks(),
	}
}

// CreateThread allocates a thread on the engine and records it for the user.
// The engine assigns the id.
func (s *Service) CreateThread(ctx context.Context, userID uint64, title string) (*Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultThreadTitle
	}

	id, err := s.engine.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("create engine thread: %w", err)
	}

	t := &Thread{ID: id, UserID: userID, Title: title}
	if err := s.repo.CreateThread(ctx, t); err != nil {
		return nil, fmt.Errorf("persist thread: %w", err)
	}
	return t, nil
}

// SendMessage runs one exchange: append the user message on the engine,
// persist it, start a run, wait for it to finish, then commit the assistant
// reply. The user message stays committed even when a later step fails.
// Returns the reply text and its engine-assigned message id.
func (s *Service) SendMessage(ctx context.Context, threadID, text string) (string, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", ErrEmptyMessage
	}

	unlock := s.locks.lock(threadID)
	defer unlock()

	userMsgID, err := s.engine.AppendMessage(ctx, threadID, RoleUser, text)
	if err != nil {
		return "", "", fmt.Errorf("append user message: %w", err)
	}
	if err := s.repo.InsertMessage(ctx, &Message{
		ID:       userMsgID,
		ThreadID: threadID,
		Role:     RoleUser,
		Content:  text,
	}); err != nil {
		return "", "", fmt.Errorf("persist user message: %w", err)
	}

	runID, err := s.engine.StartRun(ctx, threadID)
	if err != nil {
		return "", "", fmt.Errorf("start run: %w", err)
	}

	if err := s.waitForRun(ctx, threadID, runID); err != nil {
		return "", "", err
	}

	replyID, replyText, err := s.findReply(ctx, threadID, runID)
	if err != nil {
		return "", "", err
	}

	if err := s.repo.InsertMessage(ctx, &Message{
		ID:       replyID,
		ThreadID: threadID,
		Role:     RoleAssistant,
		Content:  replyText,
	}); err != nil {
		return "", "", fmt.Errorf("persist assistant message: %w", err)
	}
	if err := s.repo.TouchThread(ctx, threadID); err != nil {
		return "", "", fmt.Errorf("touch thread: %w", err)
	}

	if s.publisher != nil {
		// Best effort: the exchange is already committed.
		if err := s.publisher.PublishExchange(ctx, ExchangeEvent{
			ThreadID:           threadID,
			UserMessageID:      userMsgID,
			AssistantMessageID: replyID,
		}); err != nil {
			log.Printf("chat: publish exchange event failed thread=%s err=%v", threadID, err)
		}
	}

	return replyText, replyID, nil
}

// waitForRun polls the run at the configured interval until it reaches a
// terminal status. The deadline is checked before each poll; on timeout the
// remote run is left to finish or fail on its own.
func (s *Service) waitForRun(ctx context.Context, threadID, runID string) error {
	deadline := time.Now().Add(s.runTimeout)
	for {
		if time.Now().After(deadline) {
			log.Printf("chat: run timed out thread=%s run=%s after=%s", threadID, runID, s.runTimeout)
			return ErrRunTimeout
		}

		run, err := s.engine.RunStatus(ctx, threadID, runID)
		if err != nil {
			return fmt.Errorf("poll run: %w", err)
		}
		if run.Status == engine.StatusCompleted {
			return nil
		}
		if run.Status.Failed() {
			return &RunTerminatedError{Status: string(run.Status), Detail: run.ErrorDetail}
		}

		// queued, in_progress or any unknown provider status: wait and re-poll.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

// findReply locates the assistant message produced by this run and extracts
// its text. Nothing is persisted on failure.
func (s *Service) findReply(ctx context.Context, threadID, runID string) (string, string, error) {
	msgs, err := s.engine.ListMessages(ctx, threadID)
	if err != nil {
		return "", "", fmt.Errorf("list engine messages: %w", err)
	}

	for _, m := range msgs {
		if m.Role != RoleAssistant || m.RunID != runID {
			continue
		}
		if len(m.Content) == 0 {
			return "", "", ErrNoReply
		}
		if m.Content[0].Type != "text" {
			return "", "", ErrUnsupportedContent
		}
		return m.ID, m.Content[0].Text, nil
	}
	return "", "", ErrNoReply
}

// ListThreads returns the user's threads, most recently active first.
func (s *Service) ListThreads(ctx context.Context, userID uint64) ([]Thread, error) {
	return s.repo.ListThreadsByUser(ctx, userID)
}

// ListMessages returns the durable transcript in creation order.
func (s *Service) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	return s.repo.ListMessages(ctx, threadID)
}

// RenameThread sets a new title and bumps last activity. Returns the trimmed
// title actually stored.
func (s *Service) RenameThread(ctx context.Context, threadID, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	if err := s.repo.RenameThread(ctx, threadID, title); err != nil {
		return "", err
	}
	return title, nil
}

// DeleteThread removes the thread and its messages.
func (s *Service) DeleteThread(ctx context.Context, threadID string) error {
	return s.repo.DeleteThread(ctx, threadID)
}
