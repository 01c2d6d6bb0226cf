package api

import (
	"errors"
	"log/slog"
	"net/http"

	"deepvision-backend/internal/auth"
	"deepvision-backend/internal/chats"
	"deepvision-backend/internal/database"
	"deepvision-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type ChatService struct {
	db     *gorm.DB
	signer *auth.Signer
}

func NewChatService(db *gorm.DB, signer *auth.Signer) *ChatService {
	return &ChatService{db: db, signer: signer}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(s.signer))

		r.Route("/api/chats", func(r chi.Router) {
			r.Get("/", RestHandler(s.ListChats))
			r.Post("/", RestHandler(s.CreateChat))
			r.Get("/{chat_id}", RestHandler(s.GetChat))
			r.Post("/{chat_id}/messages", RestHandler(s.AppendMessage))
			r.Patch("/{chat_id}", RestHandler(s.RenameChat))
			r.Delete("/{chat_id}", RestHandler(s.DeleteChat))
			r.Post("/{chat_id}/duplicate", RestHandler(s.DuplicateChat))
		})
		r.Patch("/api/messages/{message_id}", RestHandler(s.EditMessage))
	})
}

// storeError maps the store's error taxonomy onto status codes. Unknown
// errors are logged and surfaced as a generic failure so storage internals
// never leak to the caller.
func storeError(err error) error {
	switch {
	case errors.Is(err, chats.ErrChatNotFound), errors.Is(err, chats.ErrMessageNotFound):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, chats.ErrForbidden):
		return CodedError(http.StatusForbidden, err)
	case errors.Is(err, chats.ErrEmptyTitle):
		return CodedError(http.StatusBadRequest, err)
	default:
		slog.Error("chat store error", "error", err)
		return CodedErrorf(http.StatusInternalServerError, "server error")
	}
}

func (s *ChatService) ListChats(r *http.Request) (any, error) {
	claims, err := callerClaims(r)
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.ListChatsRequest](r)
	if err != nil {
		return nil, err
	}

	chatList, err := chats.ListChats(r.Context(), s.db, claims.UserId)
	if err != nil {
		return nil, storeError(err)
	}

	if params.Offset > 0 {
		if params.Offset > len(chatList) {
			params.Offset = len(chatList)
		}
		chatList = chatList[params.Offset:]
	}
	if params.Limit > 0 && params.Limit < len(chatList) {
		chatList = chatList[:params.Limit]
	}

	resp := api.ListChatsResponse{Chats: make([]api.Chat, len(chatList))}
	for i, chat := range chatList {
		resp.Chats[i] = toApiChat(chat)
	}
	return resp, nil
}

func (s *ChatService) CreateChat(r *http.Request) (any, error) {
	claims, err := callerClaims(r)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.CreateChatRequest](r)
	if err != nil {
		return nil, err
	}

	chat, err := chats.CreateChat(r.Context(), s.db, claims.UserId, req.Title)
	if err != nil {
		return nil, storeError(err)
	}
	return api.ChatResponse{Chat: toApiChat(chat)}, nil
}

func (s *ChatService) GetChat(r *http.Request) (any, error) {
	claims, err := callerClaims(r)
	if err != nil {
		return nil, err
	}

	chatId, err := URLParamInt64(r, "chat_id")
	if err != nil {
		return nil, err
	}

	chat, err := chats.GetChat(r.Context(), s.db, chatId, claims.UserId)
	if err != nil {
		return nil, storeError(err)
	}
	return api.ChatResponse{Chat: toApiChat(chat)}, nil
}

func (s *ChatService) AppendMessage(r *http.Request) (any, error) {
	claims, err := callerClaims(r)
	if err != nil {
		return nil, err
	}

	chatId, err := URLParamInt64(r, "chat_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.AppendMessageRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = database.RoleUser
	}
	if req.Role != database.RoleUser && req.Role != database.RoleAssistant {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid role '%s'", req.Role)
	}

	message, err := chats.AppendMessage(r.Context(), s.db, chatId, claims.UserId, req.Role, req.Content, req.Images)
	if err != nil {
		return nil, storeError(err)
	}
	return api.MessageResponse{Message: toApiMessage(message)}, nil
}

func (s *ChatService) RenameChat(r *http.Request) (any, error) {
	claims, err := callerClaims(r)
	if err != nil {
		return nil, err
	}

	chatId, err := URLParamInt64(r, "chat_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.RenameChatRequest](r)
	if err != nil {
		return nil, err
	}

	if err := chats.RenameChat(r.Context(), s.db, chatId, claims.UserId, req.Title); err != nil {
		return nil, storeError(err)
	}
	return api.StatusResponse{Status: "ok"}, nil
}

func (s *ChatService) DeleteChat(r *http.Request) (any, error) {
	claims, err := callerClaims(r)
	if err != nil {
		return nil, err
	}

	chatId, err := URLParamInt64(r, "chat_id")
	if err != nil {
		return nil, err
	}

	if err := chats.DeleteChat(r.Context(), s.db, chatId, claims.UserId); err != nil {
		return nil, storeError(err)
	}
	return api.StatusResponse{Status: "ok"}, nil
}

func (s *ChatService) DuplicateChat(r *http.Request) (any, error) {
	claims, err := callerClaims(r)
	if err != nil {
		return nil, err
	}

	chatId, err := URLParamInt64(r, "chat_id")
	if err != nil {
		return nil, err
	}

	chat, err := chats.DuplicateChat(r.Context(), s.db, chatId, claims.UserId)
	if err != nil {
		return nil, storeError(err)
	}
	return api.ChatResponse{Chat: toApiChat(chat)}, nil
}

func (s *ChatService) EditMessage(r *http.Request) (any, error) {
	claims, err := callerClaims(r)
	if err != nil {
		return nil, err
	}

	messageId, err := URLParamInt64(r, "message_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.EditMessageRequest](r)
	if err != nil {
		return nil, err
	}

	if err := chats.EditMessage(r.Context(), s.db, messageId, claims.UserId, req.Content, req.Images); err != nil {
		return nil, storeError(err)
	}
	return api.StatusResponse{Status: "ok"}, nil
}
