package chats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"deepvision-backend/internal/database"
	"deepvision-backend/pkg/titles"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrChatNotFound covers both a missing chat and a chat owned by another
	// user, so that status codes do not leak which chats exist.
	ErrChatNotFound = errors.New("chat not found")

	ErrMessageNotFound = errors.New("message not found")
	ErrForbidden       = errors.New("not the owner of this chat")
	ErrEmptyTitle      = errors.New("title must not be empty")
)

// SQLite only supports one writer at a time, so we need a lock
// whenever we write to the database
var dbMutex sync.Mutex

func ListChats(ctx context.Context, db *gorm.DB, userId int64) ([]database.Chat, error) {
	var chatList []database.Chat
	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("updated_at DESC").
		Find(&chatList).Error
	return chatList, err
}

func CreateChat(ctx context.Context, db *gorm.DB, userId int64, title string) (database.Chat, error) {
	if strings.TrimSpace(title) == "" {
		title = titles.Default
	}

	chat := database.Chat{UserId: userId, Title: title, CustomTitle: false}

	dbMutex.Lock()
	defer dbMutex.Unlock()
	if err := db.WithContext(ctx).Create(&chat).Error; err != nil {
		return database.Chat{}, err
	}
	return chat, nil
}

// GetChat returns the chat with its messages in insertion order.
func GetChat(ctx context.Context, db *gorm.DB, chatId, userId int64) (database.Chat, error) {
	var chat database.Chat
	err := db.WithContext(ctx).First(&chat, "id = ? AND user_id = ?", chatId, userId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Chat{}, ErrChatNotFound
		}
		return database.Chat{}, err
	}

	err = db.WithContext(ctx).
		Where("chat_id = ?", chatId).
		Order("id ASC").
		Find(&chat.Messages).Error
	if err != nil {
		return database.Chat{}, err
	}
	return chat, nil
}

// AppendMessage inserts at the end of the chat's message order and bumps the
// chat's updated_at. The first user message also sets a content-derived title
// unless the chat already has a custom one.
func AppendMessage(ctx context.Context, db *gorm.DB, chatId, userId int64, role, content string, images []string) (database.ChatMessage, error) {
	message := database.ChatMessage{ChatId: chatId, Role: role, Content: content}
	if len(images) > 0 {
		encoded, err := json.Marshal(images)
		if err != nil {
			return database.ChatMessage{}, fmt.Errorf("error serializing images: %w", err)
		}
		message.Images = datatypes.JSON(encoded)
	}

	dbMutex.Lock()
	defer dbMutex.Unlock()

	err := db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var chat database.Chat
		if err := txn.First(&chat, "id = ? AND user_id = ?", chatId, userId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChatNotFound
			}
			return err
		}

		var messageCount int64
		if err := txn.Model(&database.ChatMessage{}).Where("chat_id = ?", chatId).Count(&messageCount).Error; err != nil {
			return err
		}

		if err := txn.Create(&message).Error; err != nil {
			return err
		}

		updates := map[string]any{"updated_at": time.Now()}
		if messageCount == 0 && !chat.CustomTitle && role == database.RoleUser {
			updates["title"] = titles.ForFirstMessage(strings.TrimSpace(content), len(images), chat.Title)
			updates["custom_title"] = true
		}

		return txn.Model(&database.Chat{}).Where("id = ?", chatId).Updates(updates).Error
	})
	if err != nil {
		return database.ChatMessage{}, err
	}
	return message, nil
}

// RenameChat always pins the title: custom_title is set so later auto-titling
// never overwrites an explicit rename.
func RenameChat(ctx context.Context, db *gorm.DB, chatId, userId int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	dbMutex.Lock()
	defer dbMutex.Unlock()

	result := db.WithContext(ctx).Model(&database.Chat{}).
		Where("id = ? AND user_id = ?", chatId, userId).
		Updates(map[string]any{"title": title, "custom_title": true, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// DeleteChat removes the chat and all of its messages atomically: either the
// whole conversation disappears or it stays fully intact.
func DeleteChat(ctx context.Context, db *gorm.DB, chatId, userId int64) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()

	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var chat database.Chat
		if err := txn.First(&chat, "id = ? AND user_id = ?", chatId, userId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChatNotFound
			}
			return err
		}

		if err := txn.Delete(&database.ChatMessage{}, "chat_id = ?", chatId).Error; err != nil {
			return err
		}
		return txn.Delete(&database.Chat{}, "id = ?", chatId).Error
	})
}

// DuplicateChat creates an independent copy: a new chat titled
// "<original> (Copy)" with every message copied over in order. Edits to
// either chat afterwards never affect the other.
func DuplicateChat(ctx context.Context, db *gorm.DB, chatId, userId int64) (database.Chat, error) {
	dbMutex.Lock()
	defer dbMutex.Unlock()

	var duplicate database.Chat
	err := db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var original database.Chat
		if err := txn.First(&original, "id = ? AND user_id = ?", chatId, userId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChatNotFound
			}
			return err
		}

		duplicate = database.Chat{
			UserId:      userId,
			Title:       original.Title + " (Copy)",
			CustomTitle: true,
		}
		if err := txn.Create(&duplicate).Error; err != nil {
			return err
		}

		var messages []database.ChatMessage
		if err := txn.Where("chat_id = ?", chatId).Order("id ASC").Find(&messages).Error; err != nil {
			return err
		}

		for _, message := range messages {
			copied := database.ChatMessage{
				ChatId:  duplicate.Id,
				Role:    message.Role,
				Content: message.Content,
				Images:  message.Images,
			}
			if err := txn.Create(&copied).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return database.Chat{}, err
	}
	return duplicate, nil
}

// EditMessage resolves ownership transitively through the message's parent
// chat. Only the provided fields are updated; nil leaves a field alone.
func EditMessage(ctx context.Context, db *gorm.DB, messageId, userId int64, content *string, images *[]string) error {
	dbMutex.Lock()
	defer dbMutex.Unlock()

	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var message database.ChatMessage
		if err := txn.First(&message, "id = ?", messageId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMessageNotFound
			}
			return err
		}

		var chat database.Chat
		if err := txn.First(&chat, "id = ?", message.ChatId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMessageNotFound
			}
			return err
		}
		if chat.UserId != userId {
			return ErrForbidden
		}

		updates := map[string]any{}
		if content != nil {
			updates["content"] = *content
		}
		if images != nil {
			if len(*images) > 0 {
				encoded, err := json.Marshal(*images)
				if err != nil {
					return fmt.Errorf("error serializing images: %w", err)
				}
				updates["images"] = datatypes.JSON(encoded)
			} else {
				updates["images"] = nil
			}
		}

		if len(updates) > 0 {
			if err := txn.Model(&database.ChatMessage{}).Where("id = ?", messageId).Updates(updates).Error; err != nil {
				return err
			}
		}

		return txn.Model(&database.Chat{}).Where("id = ?", chat.Id).
			Updates(map[string]any{"updated_at": time.Now()}).Error
	})
}

// DecodeImages unpacks a stored image column back into the wire form.
func DecodeImages(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var images []string
	if err := json.Unmarshal(raw, &images); err != nil {
		return []string{}
	}
	return images
}
