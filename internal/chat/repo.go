package chat

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateThread(ctx context.Context, t *Thread) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) GetThread(ctx context.Context, id string) (*Thread, error) {
	var t Thread
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ListThreadsByUser returns the user's threads, most recently active first.
func (r *Repo) ListThreadsByUser(ctx context.Context, userID uint64) ([]Thread, error) {
	var threads []Thread
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&threads).Error; err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *Repo) RenameThread(ctx context.Context, id, title string) error {
	return r.db.WithContext(ctx).Model(&Thread{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":      title,
			"updated_at": time.Now(),
		}).Error
}

// DeleteThread removes the thread and all of its messages in one transaction.
func (r *Repo) DeleteThread(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Thread{}, "id = ?", id).Error
	})
}

// TouchThread bumps the thread's last-activity timestamp.
func (r *Repo) TouchThread(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Thread{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns the thread's transcript in creation order.
func (r *Repo) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
