// Package versions holds snapshots of the schema as it existed at each
// migration, so that later changes to the live models in internal/database do
// not silently rewrite history.
package versions

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	Id           int64  `gorm:"primaryKey"`
	Username     string `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
}

type PasswordReset struct {
	Id        int64  `gorm:"primaryKey"`
	Username  string `gorm:"size:100;index;not null"`
	Token     string `gorm:"size:255;not null"`
	CreatedAt time.Time
}

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
	Id        int64  `gorm:"primaryKey"`
	ChatId    int64  `gorm:"index;not null"`
	Role      string `gorm:"size:20;not null"`
	Content   string
	Images    datatypes.JSON
	CreatedAt time.Time
}

func Migration(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &PasswordReset{}, &Chat{}, &ChatMessage{})
}
