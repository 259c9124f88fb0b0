package identity

import "time"

// User is an anonymous identity. Username encodes the session token; there
// are no credentials.
type User struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Username    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	DisplayName string    `gorm:"type:varchar(64);not null" json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func (User) TableName() string { return "user_accounts" }
