package api

import (
	"deepvision-backend/internal/chats"
	"deepvision-backend/internal/database"
	"deepvision-backend/pkg/api"
)

func toApiUser(user database.User) api.User {
	return api.User{
		Id:        user.Id,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}
}

func toApiMessage(message database.ChatMessage) api.Message {
	return api.Message{
		Id:        message.Id,
		Role:      message.Role,
		Content:   message.Content,
		Images:    chats.DecodeImages(message.Images),
		CreatedAt: message.CreatedAt,
	}
}

func toApiChat(chat database.Chat) api.Chat {
	messages := make([]api.Message, len(chat.Messages))
	for i, message := range chat.Messages {
		messages[i] = toApiMessage(message)
	}
	return api.Chat{
		Id:          chat.Id,
		Title:       chat.Title,
		CustomTitle: chat.CustomTitle,
		CreatedAt:   chat.CreatedAt,
		UpdatedAt:   chat.UpdatedAt,
		Messages:    messages,
	}
}
