// Package client maintains a local mirror of a user's chats against the
// dashboard backend: optimistic writes, reconciliation on open, and a
// degraded local-only mode when the backend is unreachable.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"deepvision-backend/pkg/api"

	"github.com/go-resty/resty/v2"
)

var (
	ErrUnauthorized    = errors.New("not logged in")
	ErrNotFound        = errors.New("not found")
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnavailable covers every transport failure and unexpected server
	// response; the cache treats them all as "remote unavailable".
	ErrUnavailable = errors.New("server unreachable")
)

// RemoteStore is the server-side chat API as seen by the cache.
type RemoteStore interface {
	ListChats(ctx context.Context) ([]api.Chat, error)
	CreateChat(ctx context.Context, title string) (api.Chat, error)
	GetChat(ctx context.Context, chatId int64) (api.Chat, error)
	AppendMessage(ctx context.Context, chatId int64, role, content string, images []string) (api.Message, error)
	RenameChat(ctx context.Context, chatId int64, title string) error
	DeleteChat(ctx context.Context, chatId int64) error
	DuplicateChat(ctx context.Context, chatId int64) (api.Chat, error)
	EditMessage(ctx context.Context, messageId int64, content *string, images *[]string) error
}

// Remote implements RemoteStore over HTTP with a bearer token.
type Remote struct {
	http *resty.Client
}

func NewRemote(baseURL, token string) *Remote {
	client := resty.New().SetBaseURL(baseURL)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Remote{http: client}
}

// Login authenticates and returns a Remote carrying the issued token.
func Login(ctx context.Context, baseURL, username, password string) (*Remote, error) {
	var out api.TokenResponse
	resp, err := resty.New().SetBaseURL(baseURL).R().
		SetContext(ctx).
		SetBody(api.LoginRequest{Username: username, Password: password}).
		SetResult(&out).
		Post("/api/auth/login")
	if err != nil {
		return nil, ErrUnavailable
	}
	if resp.IsError() {
		return nil, remoteError(resp.StatusCode())
	}
	return NewRemote(baseURL, out.Token), nil
}

func remoteError(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusRequestEntityTooLarge:
		return ErrPayloadTooLarge
	default:
		return ErrUnavailable
	}
}

func (r *Remote) do(ctx context.Context, method, path string, body, out any) error {
	req := r.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return ErrUnavailable
	}
	if resp.IsError() {
		return remoteError(resp.StatusCode())
	}
	return nil
}

func (r *Remote) ListChats(ctx context.Context) ([]api.Chat, error) {
	var out api.ListChatsResponse
	if err := r.do(ctx, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

func (r *Remote) CreateChat(ctx context.Context, title string) (api.Chat, error) {
	var out api.ChatResponse
	if err := r.do(ctx, http.MethodPost, "/api/chats", api.CreateChatRequest{Title: title}, &out); err != nil {
		return api.Chat{}, err
	}
	return out.Chat, nil
}

func (r *Remote) GetChat(ctx context.Context, chatId int64) (api.Chat, error) {
	var out api.ChatResponse
	if err := r.do(ctx, http.MethodGet, fmt.Sprintf("/api/chats/%d", chatId), nil, &out); err != nil {
		return api.Chat{}, err
	}
	return out.Chat, nil
}

func (r *Remote) AppendMessage(ctx context.Context, chatId int64, role, content string, images []string) (api.Message, error) {
	var out api.MessageResponse
	body := api.AppendMessageRequest{Role: role, Content: content, Images: images}
	if err := r.do(ctx, http.MethodPost, fmt.Sprintf("/api/chats/%d/messages", chatId), body, &out); err != nil {
		return api.Message{}, err
	}
	return out.Message, nil
}

func (r *Remote) RenameChat(ctx context.Context, chatId int64, title string) error {
	return r.do(ctx, http.MethodPatch, fmt.Sprintf("/api/chats/%d", chatId), api.RenameChatRequest{Title: title}, nil)
}

func (r *Remote) DeleteChat(ctx context.Context, chatId int64) error {
	return r.do(ctx, http.MethodDelete, fmt.Sprintf("/api/chats/%d", chatId), nil, nil)
}

func (r *Remote) DuplicateChat(ctx context.Context, chatId int64) (api.Chat, error) {
	var out api.ChatResponse
	if err := r.do(ctx, http.MethodPost, fmt.Sprintf("/api/chats/%d/duplicate", chatId), nil, &out); err != nil {
		return api.Chat{}, err
	}
	return out.Chat, nil
}

func (r *Remote) EditMessage(ctx context.Context, messageId int64, content *string, images *[]string) error {
	body := api.EditMessageRequest{Content: content, Images: images}
	return r.do(ctx, http.MethodPatch, fmt.Sprintf("/api/messages/%d", messageId), body, nil)
}
