package engine

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI implements Engine on the OpenAI Assistants API. The assistant id
// selects which assistant composes replies; it is fixed per deployment.
type OpenAI struct {
	client      openai.Client
	assistantID string
}

func NewOpenAI(apiKey, baseURL, assistantID string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client:      openai.NewClient(opts...),
		assistantID: assistantID,
	}
}

func (e *OpenAI) CreateThread(ctx context.Context) (string, error) {
	thread, err := e.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("engine: create thread: %w", err)
	}
	return thread.ID, nil
}

func (e *OpenAI) AppendMessage(ctx context.Context, threadID, role, text string) (string, error) {
	var r openai.BetaThreadMessageNewParamsRole
	switch role {
	case "user":
		r = openai.BetaThreadMessageNewParamsRoleUser
	case "assistant":
		r = openai.BetaThreadMessageNewParamsRoleAssistant
	default:
		return "", fmt.Errorf("engine: unsupported role %q", role)
	}

	msg, err := e.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: r,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("engine: append message: %w", err)
	}
	return msg.ID, nil
}

func (e *OpenAI) StartRun(ctx context.Context, threadID string) (string, error) {
	run, err := e.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: e.assistantID,
	})
	if err != nil {
		return "", fmt.Errorf("engine: start run: %w", err)
	}
	return run.ID, nil
}

func (e *OpenAI) RunStatus(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := e.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return Run{}, fmt.Errorf("engine: get run: %w", err)
	}
	return Run{
		ID:          run.ID,
		Status:      Status(run.Status),
		ErrorDetail: run.LastError.Message,
	}, nil
}

func (e *OpenAI) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	page, err := e.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{})
	if err != nil {
		return nil, fmt.Errorf("engine: list messages: %w", err)
	}

	out := make([]ThreadMessage, 0, len(page.Data))
	for _, m := range page.Data {
		tm := ThreadMessage{
			ID:    m.ID,
			Role:  string(m.Role),
			RunID: m.RunID,
		}
		for _, c := range m.Content {
			tm.Content = append(tm.Content, ContentPart{
				Type: string(c.Type),
				Text: c.Text.Value,
			})
		}
		out = append(out, tm)
	}
	return out, nil
}
