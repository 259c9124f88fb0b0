package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/hilo-chat/hilo/internal/engine"
)

// fakeEngine scripts run status transitions. Statuses are consumed one per
// poll; the last one repeats.
type fakeEngine struct {
	mu sync.Mutex

	statuses    []engine.Status
	statusIdx   int
	errorDetail string

	reply    *engine.ThreadMessage
	onPoll   func()
	appendID int

	appendCalls int32
	runCalls    int32
	pollCalls   int32
}

func (f *fakeEngine) CreateThread(ctx context.Context) (string, error) {
	return "thread_fake", nil
}

func (f *fakeEngine) AppendMessage(ctx context.Context, threadID, role, text string) (string, error) {
	atomic.AddInt32(&f.appendCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendID++
	return fmt.Sprintf("msg_%s_%d", role, f.appendID), nil
}

func (f *fakeEngine) StartRun(ctx context.Context, threadID string) (string, error) {
	atomic.AddInt32(&f.runCalls, 1)
	return "run_1", nil
}

func (f *fakeEngine) RunStatus(ctx context.Context, threadID, runID string) (engine.Run, error) {
	atomic.AddInt32(&f.pollCalls, 1)
	if f.onPoll != nil {
		f.onPoll()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.statusIdx
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.statusIdx++
	return engine.Run{ID: runID, Status: f.statuses[idx], ErrorDetail: f.errorDetail}, nil
}

func (f *fakeEngine) ListMessages(ctx context.Context, threadID string) ([]engine.ThreadMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reply == nil {
		return nil, nil
	}
	return []engine.ThreadMessage{*f.reply}, nil
}

func textReply(runID, text string) *engine.ThreadMessage {
	return &engine.ThreadMessage{
		ID:      "msg_assistant_99",
		Role:    RoleAssistant,
		RunID:   runID,
		Content: []engine.ContentPart{{Type: "text", Text: text}},
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Thread{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, eng engine.Engine) *Service {
	t.Helper()
	return NewService(NewRepo(db), eng, nil, time.Millisecond, 500*time.Millisecond)
}

func seedThread(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	if err := NewRepo(db).CreateThread(context.Background(), &Thread{
		ID:     id,
		UserID: 1,
		Title:  DefaultThreadTitle,
	}); err != nil {
		t.Fatalf("seed thread: %v", err)
	}
}

func countRows(t *testing.T, db *gorm.DB, threadID, role string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&Message{}).
		Where("thread_id = ? AND role = ?", threadID, role).
		Count(&n).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return n
}

func TestSendMessage_Success(t *testing.T) {
	db := openTestDB(t)
	seedThread(t, db, "thread_ok")

	eng := &fakeEngine{
		statuses: []engine.Status{engine.StatusQueued, engine.StatusInProgress, engine.StatusCompleted},
		reply:    textReply("run_1", "hello there"),
	}
	svc := newTestService(t, db, eng)

	content, msgID, err := svc.SendMessage(context.Background(), "thread_ok", "  hi  ")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if content != "hello there" {
		t.Fatalf("unexpected reply content: %q", content)
	}
	if msgID != "msg_assistant_99" {
		t.Fatalf("unexpected reply message id: %q", msgID)
	}

	var msgs []Message
	if err := db.Where("thread_id = ?", "thread_ok").Order("created_at ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "hi" {
		t.Fatalf("unexpected user msg: role=%q content=%q", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "hello there" {
		t.Fatalf("unexpected assistant msg: role=%q content=%q", msgs[1].Role, msgs[1].Content)
	}

	var thread Thread
	if err := db.First(&thread, "id = ?", "thread_ok").Error; err != nil {
		t.Fatalf("query thread: %v", err)
	}
	if thread.UpdatedAt.Before(thread.CreatedAt) {
		t.Fatalf("expected updated_at to be bumped")
	}
}

func TestSendMessage_EmptyInput_NoEngineCalls(t *testing.T) {
	db := openTestDB(t)
	seedThread(t, db, "thread_empty")

	eng := &fakeEngine{statuses: []engine.Status{engine.StatusCompleted}}
	svc := newTestService(t, db, eng)

	_, _, err := svc.SendMessage(context.Background(), "thread_empty", "   \n\t ")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if n := atomic.LoadInt32(&eng.appendCalls); n != 0 {
		t.Fatalf("expected no engine appends, got %d", n)
	}
	if n := atomic.LoadInt32(&eng.runCalls); n != 0 {
		t.Fatalf("expected no runs started, got %d", n)
	}
	if n := countRows(t, db, "thread_empty", RoleUser); n != 0 {
		t.Fatalf("expected no user rows, got %d", n)
	}
}

func TestSendMessage_Timeout(t *testing.T) {
	db := openTestDB(t)
	seedThread(t, db, "thread_stuck")

	eng := &fakeEngine{statuses: []engine.Status{engine.StatusInProgress}}
	svc := NewService(NewRepo(db), eng, nil, 5*time.Millisecond, 30*time.Millisecond)

	start := time.Now()
	_, _, err := svc.SendMessage(context.Background(), "thread_stuck", "hi")
	if !errors.Is(err, ErrRunTimeout) {
		t.Fatalf("expected ErrRunTimeout, got %v", err)
	}
	// Bounded by deadline + one polling interval (plus scheduling slack).
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("poll loop ran too long: %s", elapsed)
	}

	if n := countRows(t, db, "thread_stuck", RoleUser); n != 1 {
		t.Fatalf("expected user message to stay committed, got %d rows", n)
	}
	if n := countRows(t, db, "thread_stuck", RoleAssistant); n != 0 {
		t.Fatalf("expected no assistant rows, got %d", n)
	}
}

func TestSendMessage_RunFailed_CarriesDetail(t *testing.T) {
	db := openTestDB(t)
	seedThread(t, db, "thread_failed")

	eng := &fakeEngine{
		statuses:    []engine.Status{engine.StatusQueued, engine.StatusFailed},
		errorDetail: "rate limited",
	}
	svc := newTestService(t, db, eng)

	_, _, err := svc.SendMessage(context.Background(), "thread_failed", "hi")
	var terminated *RunTerminatedError
	if !errors.As(err, &terminated) {
		t.Fatalf("expected RunTerminatedError, got %v", err)
	}
	if terminated.Status != string(engine.StatusFailed) {
		t.Fatalf("unexpected status: %q", terminated.Status)
	}
	if terminated.Detail != "rate limited" {
		t.Fatalf("unexpected detail: %q", terminated.Detail)
	}

	if n := countRows(t, db, "thread_failed", RoleAssistant); n != 0 {
		t.Fatalf("expected no assistant rows, got %d", n)
	}
}

func TestSendMessage_NoReply(t *testing.T) {
	db := openTestDB(t)
	seedThread(t, db, "thread_noreply")

	eng := &fakeEngine{statuses: []engine.Status{engine.StatusCompleted}}
	svc := newTestService(t, db, eng)

	_, _, err := svc.SendMessage(context.Background(), "thread_noreply", "hi")
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("expected ErrNoReply, got %v", err)
	}
	if n := countRows(t, db, "thread_noreply", RoleAssistant); n != 0 {
		t.Fatalf("expected no assistant rows, got %d", n)
	}
}

func TestSendMessage_UnsupportedContent(t *testing.T) {
	db := openTestDB(t)
	seedThread(t, db, "thread_image")

	reply := textReply("run_1", "")
	reply.Content = []engine.ContentPart{{Type: "image_file"}}
	eng := &fakeEngine{
		statuses: []engine.Status{engine.StatusCompleted},
		reply:    reply,
	}
	svc := newTestService(t, db, eng)

	_, _, err := svc.SendMessage(context.Background(), "thread_image", "hi")
	if !errors.Is(err, ErrUnsupportedContent) {
		t.Fatalf("expected ErrUnsupportedContent, got %v", err)
	}
	if n := countRows(t, db, "thread_image", RoleAssistant); n != 0 {
		t.Fatalf("expected no assistant rows, got %d", n)
	}
}

func TestSendMessage_NoPollAfterTerminal(t *testing.T) {
	db := openTestDB(t)
	seedThread(t, db, "thread_onepoll")

	eng := &fakeEngine{
		statuses: []engine.Status{engine.StatusCompleted},
		reply:    textReply("run_1", "done"),
	}
	svc := newTestService(t, db, eng)

	if _, _, err := svc.SendMessage(context.Background(), "thread_onepoll", "hi"); err != nil {
		t.Fatalf("send message: %v", err)
	}
	if n := atomic.LoadInt32(&eng.pollCalls); n != 1 {
		t.Fatalf("expected exactly 1 poll, got %d", n)
	}
}

func TestSendMessage_UserPersistedBeforePolling(t *testing.T) {
	db := openTestDB(t)
	seedThread(t, db, "thread_order")

	var userRowsAtFirstPoll int64
	eng := &fakeEngine{
		statuses: []engine.Status{engine.StatusCompleted},
		reply:    textReply("run_1", "done"),
	}
	polled := false
	eng.onPoll = func() {
		if polled {
			return
		}
		polled = true
		db.Model(&Message{}).
			Where("thread_id = ? AND role = ?", "thread_order", RoleUser).
			Count(&userRowsAtFirstPoll)
	}
	svc := newTestService(t, db, eng)

	if _, _, err := svc.SendMessage(context.Background(), "thread_order", "hi"); err != nil {
		t.Fatalf("send message: %v", err)
	}
	if userRowsAtFirstPoll != 1 {
		t.Fatalf("expected user message durable before first poll, saw %d rows", userRowsAtFirstPoll)
	}
}

// overlapEngine flags overlapping appends on the same thread.
type overlapEngine struct {
	fakeEngine
	inFlight   int32
	overlapped int32
}

func (o *overlapEngine) AppendMessage(ctx context.Context, threadID, role, text string) (string, error) {
	if atomic.AddInt32(&o.inFlight, 1) > 1 {
		atomic.StoreInt32(&o.overlapped, 1)
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&o.inFlight, -1)
	return o.fakeEngine.AppendMessage(ctx, threadID, role, text)
}

func TestSendMessage_SerializedPerThread(t *testing.T) {
	db := openTestDB(t)
	seedThread(t, db, "thread_lock")

	eng := &overlapEngine{fakeEngine: fakeEngine{
		statuses: []engine.Status{engine.StatusCompleted},
		reply:    textReply("run_1", "done"),
	}}
	svc := newTestService(t, db, eng)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = svc.SendMessage(context.Background(), "thread_lock", "hi")
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&eng.overlapped) != 0 {
		t.Fatalf("expected sends on one thread to be serialized")
	}
}

func TestCreateThread_UsesEngineID(t *testing.T) {
	db := openTestDB(t)

	eng := &fakeEngine{statuses: []engine.Status{engine.StatusCompleted}}
	svc := newTestService(t, db, eng)

	thread, err := svc.CreateThread(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if thread.ID != "thread_fake" {
		t.Fatalf("expected engine-assigned id, got %q", thread.ID)
	}
	if thread.Title != DefaultThreadTitle {
		t.Fatalf("expected default title, got %q", thread.Title)
	}

	var stored Thread
	if err := db.First(&stored, "id = ?", "thread_fake").Error; err != nil {
		t.Fatalf("query thread: %v", err)
	}
	if stored.UserID != 7 {
		t.Fatalf("unexpected owner: %d", stored.UserID)
	}
}

func TestRenameThread_RejectsEmptyTitle(t *testing.T) {
	db := openTestDB(t)
	seedThread(t, db, "thread_rename")

	svc := newTestService(t, db, &fakeEngine{statuses: []engine.Status{engine.StatusCompleted}})

	if _, err := svc.RenameThread(context.Background(), "thread_rename", "  "); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}

	title, err := svc.RenameThread(context.Background(), "thread_rename", "  Trip planning  ")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if title != "Trip planning" {
		t.Fatalf("expected trimmed title, got %q", title)
	}
}
