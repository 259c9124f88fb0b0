package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Thread ids are assigned by the external engine, so the primary key is the
// engine's opaque string.
type Thread struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    uint64    `gorm:"index;not null" json:"-"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Thread) TableName() string { return "chat_threads" }

// Message rows are immutable once written; they are removed only when their
// thread is deleted.
type Message struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	ThreadID  string    `gorm:"size:64;index;not null" json:"thread_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }
