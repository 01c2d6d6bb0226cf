package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"deepvision-backend/pkg/api"
	"deepvision-backend/pkg/titles"
)

var ErrEmptyTitle = errors.New("title must not be empty")

// SyncState tracks how a mirrored chat relates to the server's canonical
// copy.
type SyncState string

const (
	// StateSynced mirrors the last successful server fetch.
	StateSynced SyncState = "synced"
	// StatePending means a local mutation has been applied and its remote
	// call is in flight.
	StatePending SyncState = "pending"
	// StateDegraded means the last remote call failed; the mirror holds
	// unsynced local state.
	StateDegraded SyncState = "degraded"
)

type Message struct {
	// ServerId is zero until the server confirms the append and its
	// canonical id is folded in.
	ServerId  int64     `json:"serverId,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Images    []string  `json:"images,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Chat struct {
	Ref         ChatRef   `json:"ref"`
	Title       string    `json:"title"`
	CustomTitle bool      `json:"customTitle"`
	State       SyncState `json:"state"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Messages    []Message `json:"messages"`
}

func (c *Chat) clone() Chat {
	copied := *c
	copied.Messages = make([]Message, len(c.Messages))
	copy(copied.Messages, c.Messages)
	return copied
}

// Cache is the client-side mirror of a user's chats. Every mutation is
// applied to the mirror first and then attempted against the remote store;
// the server stays the source of truth and overwrites the mirror on any
// successful fetch. The cache has an explicit lifecycle: construct it at
// session start, Close it at logout.
//
// A single mutex serializes operations, which also guarantees at most one
// in-flight remote mutation per chat.
type Cache struct {
	mu     sync.Mutex
	remote RemoteStore
	path   string
	chats  []*Chat
}

// NewCache loads the persisted mirror from path when it exists. An empty
// path keeps the mirror in memory only.
func NewCache(remote RemoteStore, path string) (*Cache, error) {
	cache := &Cache{remote: remote, path: path}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, &cache.chats); err != nil {
				return nil, fmt.Errorf("error loading chat mirror from %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading chat mirror: %w", err)
		}
	}
	return cache, nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked()
}

func (c *Cache) persistLocked() error {
	if c.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(c.chats, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing chat mirror: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Chats returns a snapshot of the mirror, newest first.
func (c *Cache) Chats() []Chat {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]Chat, len(c.chats))
	for i, chat := range c.chats {
		snapshot[i] = chat.clone()
	}
	return snapshot
}

func (c *Cache) Chat(ref ChatRef) (Chat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chat := c.findLocked(ref)
	if chat == nil {
		return Chat{}, false
	}
	return chat.clone(), true
}

func (c *Cache) findLocked(ref ChatRef) *Chat {
	for _, chat := range c.chats {
		if chat.Ref == ref {
			return chat
		}
	}
	return nil
}

// Refresh replaces every server-identified entry with the server's chat
// list. Local-only degraded chats have no canonical copy to be replaced by,
// so they are kept, ahead of the server list.
func (c *Cache) Refresh(ctx context.Context) error {
	listed, err := c.remote.ListChats(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var next []*Chat
	for _, chat := range c.chats {
		if !chat.Ref.IsRemote() {
			next = append(next, chat)
		}
	}
	for _, remote := range listed {
		chat := chatFromRemote(remote)
		next = append(next, &chat)
	}
	c.chats = next
	return c.persistLocked()
}

func chatFromRemote(remote api.Chat) Chat {
	chat := Chat{
		Ref:         RemoteRef(remote.Id),
		Title:       remote.Title,
		CustomTitle: remote.CustomTitle,
		State:       StateSynced,
		CreatedAt:   remote.CreatedAt,
		UpdatedAt:   remote.UpdatedAt,
		Messages:    make([]Message, len(remote.Messages)),
	}
	for i, message := range remote.Messages {
		chat.Messages[i] = Message{
			ServerId:  message.Id,
			Role:      message.Role,
			Content:   message.Content,
			Images:    message.Images,
			CreatedAt: message.CreatedAt,
		}
	}
	return chat
}

// Open fetches the canonical copy of a server-identified chat and replaces
// the local shadow wholesale: title, flags and messages all come from the
// server, and unsynced local edits are superseded. Local-only chats are
// returned as they are; there is nothing to fetch for them.
func (c *Cache) Open(ctx context.Context, ref ChatRef) (Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chat := c.findLocked(ref)
	if chat == nil {
		return Chat{}, ErrNotFound
	}

	serverId, ok := ref.ServerId()
	if !ok {
		return chat.clone(), nil
	}

	remote, err := c.remote.GetChat(ctx, serverId)
	if err != nil {
		chat.State = StateDegraded
		return chat.clone(), err
	}

	*chat = chatFromRemote(remote)
	if err := c.persistLocked(); err != nil {
		return chat.clone(), err
	}
	return chat.clone(), nil
}

// CreateChat creates a chat on the server, falling back to a local-only
// degraded chat with a client-generated id when the server is unreachable.
func (c *Cache) CreateChat(ctx context.Context) (ChatRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	remote, err := c.remote.CreateChat(ctx, "")
	var chat Chat
	if err != nil {
		chat = Chat{
			Ref:       LocalRef(),
			Title:     titles.Default,
			State:     StateDegraded,
			CreatedAt: now,
			UpdatedAt: now,
		}
	} else {
		chat = chatFromRemote(remote)
	}

	c.chats = append([]*Chat{&chat}, c.chats...)
	if err := c.persistLocked(); err != nil {
		return chat.Ref, err
	}
	return chat.Ref, nil
}

// AppendMessage applies the message to the mirror immediately and then
// attempts the remote append. On success the server-assigned message id is
// folded into the same array position. The first user message also triggers
// the auto-title rule; the server applies the same rule on its side.
func (c *Cache) AppendMessage(ctx context.Context, ref ChatRef, role, content string, images []string) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chat := c.findLocked(ref)
	if chat == nil {
		return Message{}, ErrNotFound
	}

	first := len(chat.Messages) == 0 && !chat.CustomTitle && role == "user"
	autoTitle := titles.ForFirstMessage(strings.TrimSpace(content), len(images), chat.Title)

	now := time.Now()
	chat.Messages = append(chat.Messages, Message{Role: role, Content: content, Images: images, CreatedAt: now})
	index := len(chat.Messages) - 1
	if first {
		chat.Title = autoTitle
		chat.CustomTitle = true
	}
	chat.UpdatedAt = now

	serverId, synced := ref.ServerId()
	var remoteErr error
	if synced {
		chat.State = StatePending
		saved, err := c.remote.AppendMessage(ctx, serverId, role, content, images)
		if err != nil {
			chat.State = StateDegraded
			remoteErr = err
		} else {
			// The server applies the same first-message title rule, so the
			// mirrored title converges without an extra rename.
			chat.Messages[index].ServerId = saved.Id
			chat.State = StateSynced
		}
	}

	if err := c.persistLocked(); err != nil {
		return chat.Messages[index], err
	}
	return chat.Messages[index], remoteErr
}

// RenameChat pins the title locally and remotely. Renames of local-only
// chats stay degraded until the chat is promoted.
func (c *Cache) RenameChat(ctx context.Context, ref ChatRef, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	chat := c.findLocked(ref)
	if chat == nil {
		return ErrNotFound
	}

	chat.Title = title
	chat.CustomTitle = true
	chat.UpdatedAt = time.Now()

	var remoteErr error
	if serverId, ok := ref.ServerId(); ok {
		chat.State = StatePending
		if err := c.remote.RenameChat(ctx, serverId, title); err != nil {
			chat.State = StateDegraded
			remoteErr = err
		} else {
			chat.State = StateSynced
		}
	}

	if err := c.persistLocked(); err != nil {
		return err
	}
	return remoteErr
}

// DeleteChat removes the chat from the mirror and attempts the remote
// delete. A failed remote delete leaves the server copy in place; it will
// reappear on the next Refresh, which is the "server wins" rule working as
// intended.
func (c *Cache) DeleteChat(ctx context.Context, ref ChatRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, chat := range c.chats {
		if chat.Ref == ref {
			c.chats = append(c.chats[:i], c.chats[i+1:]...)
			break
		}
	}

	var remoteErr error
	if serverId, ok := ref.ServerId(); ok {
		remoteErr = c.remote.DeleteChat(ctx, serverId)
	}

	if err := c.persistLocked(); err != nil {
		return err
	}
	return remoteErr
}

// DuplicateChat copies a chat. Server-identified chats are duplicated
// remotely and the fresh copy is fetched back; when that fails, or for
// local-only chats, an independent degraded copy is made in the mirror.
func (c *Cache) DuplicateChat(ctx context.Context, ref ChatRef) (ChatRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chat := c.findLocked(ref)
	if chat == nil {
		return ChatRef{}, ErrNotFound
	}

	if serverId, ok := ref.ServerId(); ok {
		created, err := c.remote.DuplicateChat(ctx, serverId)
		if err == nil {
			duplicate := chatFromRemote(created)
			if detailed, err := c.remote.GetChat(ctx, created.Id); err == nil {
				duplicate = chatFromRemote(detailed)
			}
			c.chats = append([]*Chat{&duplicate}, c.chats...)
			if err := c.persistLocked(); err != nil {
				return duplicate.Ref, err
			}
			return duplicate.Ref, nil
		}
	}

	now := time.Now()
	duplicate := chat.clone()
	duplicate.Ref = LocalRef()
	duplicate.Title = chat.Title + " (Copy)"
	duplicate.CustomTitle = true
	duplicate.State = StateDegraded
	duplicate.CreatedAt = now
	duplicate.UpdatedAt = now
	for i := range duplicate.Messages {
		duplicate.Messages[i].ServerId = 0
	}

	c.chats = append([]*Chat{&duplicate}, c.chats...)
	if err := c.persistLocked(); err != nil {
		return duplicate.Ref, err
	}
	return duplicate.Ref, nil
}

// EditMessage patches the message at index. Only non-nil fields change. The
// remote edit is attempted only when both the chat and the message already
// have server identities.
func (c *Cache) EditMessage(ctx context.Context, ref ChatRef, index int, content *string, images *[]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	chat := c.findLocked(ref)
	if chat == nil {
		return ErrNotFound
	}
	if index < 0 || index >= len(chat.Messages) {
		return ErrNotFound
	}

	message := &chat.Messages[index]
	if content != nil {
		message.Content = *content
	}
	if images != nil {
		message.Images = *images
	}
	chat.UpdatedAt = time.Now()

	var remoteErr error
	if _, ok := ref.ServerId(); ok && message.ServerId != 0 {
		chat.State = StatePending
		if err := c.remote.EditMessage(ctx, message.ServerId, content, images); err != nil {
			chat.State = StateDegraded
			remoteErr = err
		} else {
			chat.State = StateSynced
		}
	}

	if err := c.persistLocked(); err != nil {
		return err
	}
	return remoteErr
}

// Promote turns a degraded local-only chat into a server-backed one: it
// creates the chat remotely, replays the mirrored messages in order, pins a
// custom title, and then replaces the local shadow with the server's copy.
// Operations that need a server identity must call this first. Promoting an
// already-remote ref returns it unchanged.
func (c *Cache) Promote(ctx context.Context, ref ChatRef) (ChatRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ref.IsRemote() {
		return ref, nil
	}

	chat := c.findLocked(ref)
	if chat == nil {
		return ChatRef{}, ErrNotFound
	}

	created, err := c.remote.CreateChat(ctx, chat.Title)
	if err != nil {
		chat.State = StateDegraded
		return ChatRef{}, err
	}

	newRef := RemoteRef(created.Id)
	chat.Ref = newRef

	for i := range chat.Messages {
		message := &chat.Messages[i]
		saved, err := c.remote.AppendMessage(ctx, created.Id, message.Role, message.Content, message.Images)
		if err != nil {
			chat.State = StateDegraded
			if persistErr := c.persistLocked(); persistErr != nil {
				return newRef, persistErr
			}
			return newRef, err
		}
		message.ServerId = saved.Id
	}

	if chat.CustomTitle {
		if err := c.remote.RenameChat(ctx, created.Id, chat.Title); err != nil {
			chat.State = StateDegraded
			if persistErr := c.persistLocked(); persistErr != nil {
				return newRef, persistErr
			}
			return newRef, err
		}
	}

	// The shadow is superseded by the canonical copy from here on.
	if detailed, err := c.remote.GetChat(ctx, created.Id); err == nil {
		*chat = chatFromRemote(detailed)
	} else {
		chat.State = StateSynced
	}

	if err := c.persistLocked(); err != nil {
		return newRef, err
	}
	return newRef, nil
}
