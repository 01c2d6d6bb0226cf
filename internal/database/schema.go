package database

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	Id           int64  `gorm:"primaryKey"`
	Username     string `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
}

// PasswordReset rows are the only thing that makes a reset token valid: a
// token works while an exact (username, token) row exists and stops working
// when the row is deleted. There is no separate expiry.
type PasswordReset struct {
	Id        int64  `gorm:"primaryKey"`
	Username  string `gorm:"size:100;index;not null"`
	Token     string `gorm:"size:255;not null"`
	CreatedAt time.Time
}

const (
	RoleUser      string = "user"
	RoleAssistant string = "assistant"
)

type Chat struct {
	Id          int64  `gorm:"primaryKey"`
	UserId      int64  `gorm:"index;not null"`
	Title       string `gorm:"size:255;not null"`
	CustomTitle bool   `gorm:"default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Messages []ChatMessage `gorm:"foreignKey:ChatId;constraint:OnDelete:CASCADE"`
}

type ChatMessage struct {
	Id      int64  `gorm:"primaryKey"`
	ChatId  int64  `gorm:"index;not null"`
	Role    string `gorm:"size:20;not null"`
	Content string

	// Encoded image payloads, order preserving. Null when the message is
	// text only.
	Images datatypes.JSON

	CreatedAt time.Time
}
