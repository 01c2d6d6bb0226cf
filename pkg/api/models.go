// Package api defines the wire types shared by the server and the client.
package api

import "time"

type User struct {
	Id        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type Message struct {
	Id        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"createdAt"`
}

type Chat struct {
	Id          int64     `json:"id"`
	Title       string    `json:"title"`
	CustomTitle bool      `json:"customTitle"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Populated only by the get-by-id endpoint; list responses leave this
	// empty so payload size stays bounded.
	Messages []Message `json:"messages"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type ForgotPasswordRequest struct {
	Username string `json:"username"`
}

type ForgotPasswordResponse struct {
	Token string `json:"token"`
}

type ResetPasswordRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

type MeResponse struct {
	User User `json:"user"`
}

type ListChatsRequest struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}

type ListChatsResponse struct {
	Chats []Chat `json:"chats"`
}

type CreateChatRequest struct {
	Title string `json:"title"`
}

type ChatResponse struct {
	Chat Chat `json:"chat"`
}

type AppendMessageRequest struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

type MessageResponse struct {
	Message Message `json:"message"`
}

type RenameChatRequest struct {
	Title string `json:"title"`
}

// EditMessageRequest updates only the fields that are present; a nil field
// leaves the stored value alone.
type EditMessageRequest struct {
	Content *string   `json:"content,omitempty"`
	Images  *[]string `json:"images,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
