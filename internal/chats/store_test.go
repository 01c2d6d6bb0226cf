package chats_test

import (
	"context"
	"testing"

	"deepvision-backend/internal/chats"
	"deepvision-backend/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

const (
	userA int64 = 1
	userB int64 = 2
)

func TestCreateAndListChats(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	chat, err := chats.CreateChat(ctx, db, userA, "")
	require.NoError(t, err)
	assert.Equal(t, "New Chat", chat.Title)
	assert.False(t, chat.CustomTitle)

	titled, err := chats.CreateChat(ctx, db, userA, "Project Notes")
	require.NoError(t, err)
	assert.Equal(t, "Project Notes", titled.Title)

	// Whitespace-only titles get the default too.
	blank, err := chats.CreateChat(ctx, db, userA, "   ")
	require.NoError(t, err)
	assert.Equal(t, "New Chat", blank.Title)

	list, err := chats.ListChats(ctx, db, userA)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	// Appending to the oldest chat bumps it to the front of the list.
	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleUser, "hello", nil)
	require.NoError(t, err)

	list, err = chats.ListChats(ctx, db, userA)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, chat.Id, list[0].Id)

	// Other users never see these chats.
	other, err := chats.ListChats(ctx, db, userB)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAutoTitleOnFirstUserMessage(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	chat, err := chats.CreateChat(ctx, db, userA, "")
	require.NoError(t, err)

	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleUser,
		"what is the tallest mountain in the world and why", nil)
	require.NoError(t, err)

	fetched, err := chats.GetChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	assert.Equal(t, "What Is The Tallest Mountain In The World", fetched.Title)
	assert.True(t, fetched.CustomTitle)

	// Later messages never re-title the chat.
	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleUser, "something else entirely", nil)
	require.NoError(t, err)

	fetched, err = chats.GetChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	assert.Equal(t, "What Is The Tallest Mountain In The World", fetched.Title)
}

func TestAutoTitleImageOnlyMessage(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	chat, err := chats.CreateChat(ctx, db, userA, "")
	require.NoError(t, err)

	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleUser, "",
		[]string{"data:image/png;base64,AAAA"})
	require.NoError(t, err)

	fetched, err := chats.GetChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	assert.Equal(t, "Images", fetched.Title)
}

func TestAutoTitleSkipsAssistantMessage(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	chat, err := chats.CreateChat(ctx, db, userA, "")
	require.NoError(t, err)

	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleAssistant, "how can I help?", nil)
	require.NoError(t, err)

	fetched, err := chats.GetChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	assert.Equal(t, "New Chat", fetched.Title)
	assert.False(t, fetched.CustomTitle)
}

func TestRenamePinsTitle(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	chat, err := chats.CreateChat(ctx, db, userA, "")
	require.NoError(t, err)

	require.NoError(t, chats.RenameChat(ctx, db, chat.Id, userA, "  My Research  "))

	fetched, err := chats.GetChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	assert.Equal(t, "My Research", fetched.Title)
	assert.True(t, fetched.CustomTitle)

	// The first user message must not clobber an explicit rename.
	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleUser, "unrelated question", nil)
	require.NoError(t, err)

	fetched, err = chats.GetChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	assert.Equal(t, "My Research", fetched.Title)

	err = chats.RenameChat(ctx, db, chat.Id, userA, "   ")
	assert.ErrorIs(t, err, chats.ErrEmptyTitle)

	err = chats.RenameChat(ctx, db, chat.Id+100, userA, "Title")
	assert.ErrorIs(t, err, chats.ErrChatNotFound)

	// Renaming someone else's chat looks like a missing chat.
	err = chats.RenameChat(ctx, db, chat.Id, userB, "Theirs Now")
	assert.ErrorIs(t, err, chats.ErrChatNotFound)
}

func TestGetChatMessagesInOrder(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	chat, err := chats.CreateChat(ctx, db, userA, "")
	require.NoError(t, err)

	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleUser, "first", nil)
	require.NoError(t, err)
	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleAssistant, "second", nil)
	require.NoError(t, err)
	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleUser, "third", []string{"img"})
	require.NoError(t, err)

	fetched, err := chats.GetChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	require.Len(t, fetched.Messages, 3)
	assert.Equal(t, "first", fetched.Messages[0].Content)
	assert.Equal(t, "second", fetched.Messages[1].Content)
	assert.Equal(t, "third", fetched.Messages[2].Content)
	assert.Equal(t, []string{"img"}, chats.DecodeImages(fetched.Messages[2].Images))

	// Another user's lookup does not reveal that the chat exists.
	_, err = chats.GetChat(ctx, db, chat.Id, userB)
	assert.ErrorIs(t, err, chats.ErrChatNotFound)

	_, err = chats.GetChat(ctx, db, chat.Id+100, userA)
	assert.ErrorIs(t, err, chats.ErrChatNotFound)
}

func TestAppendMessageUnownedChat(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	chat, err := chats.CreateChat(ctx, db, userA, "")
	require.NoError(t, err)

	_, err = chats.AppendMessage(ctx, db, chat.Id, userB, database.RoleUser, "hi", nil)
	assert.ErrorIs(t, err, chats.ErrChatNotFound)

	fetched, err := chats.GetChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	assert.Empty(t, fetched.Messages)
}

func TestDeleteChatCascades(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	chat, err := chats.CreateChat(ctx, db, userA, "")
	require.NoError(t, err)
	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleUser, "hello", nil)
	require.NoError(t, err)

	err = chats.DeleteChat(ctx, db, chat.Id, userB)
	assert.ErrorIs(t, err, chats.ErrChatNotFound)

	require.NoError(t, chats.DeleteChat(ctx, db, chat.Id, userA))

	_, err = chats.GetChat(ctx, db, chat.Id, userA)
	assert.ErrorIs(t, err, chats.ErrChatNotFound)

	var orphaned int64
	require.NoError(t, db.Model(&database.ChatMessage{}).Where("chat_id = ?", chat.Id).Count(&orphaned).Error)
	assert.Zero(t, orphaned)

	err = chats.DeleteChat(ctx, db, chat.Id, userA)
	assert.ErrorIs(t, err, chats.ErrChatNotFound)
}

func TestDuplicateChatIsIndependent(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	chat, err := chats.CreateChat(ctx, db, userA, "Trip Planning")
	require.NoError(t, err)
	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleUser, "where to?", nil)
	require.NoError(t, err)
	_, err = chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleAssistant, "anywhere", []string{"map"})
	require.NoError(t, err)

	duplicate, err := chats.DuplicateChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	assert.NotEqual(t, chat.Id, duplicate.Id)
	assert.Equal(t, "Trip Planning (Copy)", duplicate.Title)
	assert.True(t, duplicate.CustomTitle)

	copied, err := chats.GetChat(ctx, db, duplicate.Id, userA)
	require.NoError(t, err)
	require.Len(t, copied.Messages, 2)
	assert.Equal(t, "where to?", copied.Messages[0].Content)
	assert.Equal(t, []string{"map"}, chats.DecodeImages(copied.Messages[1].Images))

	// Changes to the copy leave the original untouched.
	_, err = chats.AppendMessage(ctx, db, duplicate.Id, userA, database.RoleUser, "extra", nil)
	require.NoError(t, err)

	original, err := chats.GetChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	assert.Len(t, original.Messages, 2)

	_, err = chats.DuplicateChat(ctx, db, chat.Id, userB)
	assert.ErrorIs(t, err, chats.ErrChatNotFound)
}

func TestEditMessage(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	chat, err := chats.CreateChat(ctx, db, userA, "")
	require.NoError(t, err)
	message, err := chats.AppendMessage(ctx, db, chat.Id, userA, database.RoleUser, "orignal text", []string{"img"})
	require.NoError(t, err)

	// Patch only the content; the images survive.
	fixed := "original text"
	require.NoError(t, chats.EditMessage(ctx, db, message.Id, userA, &fixed, nil))

	fetched, err := chats.GetChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	require.Len(t, fetched.Messages, 1)
	assert.Equal(t, "original text", fetched.Messages[0].Content)
	assert.Equal(t, []string{"img"}, chats.DecodeImages(fetched.Messages[0].Images))

	// Clearing images with an empty slice.
	empty := []string{}
	require.NoError(t, chats.EditMessage(ctx, db, message.Id, userA, nil, &empty))

	fetched, err = chats.GetChat(ctx, db, chat.Id, userA)
	require.NoError(t, err)
	assert.Empty(t, chats.DecodeImages(fetched.Messages[0].Images))

	err = chats.EditMessage(ctx, db, message.Id+100, userA, &fixed, nil)
	assert.ErrorIs(t, err, chats.ErrMessageNotFound)

	// The message id is real, so a foreign caller gets forbidden rather
	// than not found.
	err = chats.EditMessage(ctx, db, message.Id, userB, &fixed, nil)
	assert.ErrorIs(t, err, chats.ErrForbidden)
}
