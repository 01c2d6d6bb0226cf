package titles

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFromText(t *testing.T) {
	assert.Equal(t, "Hello World", FromText("hello world"))
	assert.Equal(t, "What Is The Capital Of France", FromText("what is the capital of france"))

	// Truncated to the first eight words.
	assert.Equal(t,
		"One Two Three Four Five Six Seven Eight",
		FromText("one two three four five six seven eight nine ten"))

	// Whitespace runs collapse like a word split.
	assert.Equal(t, "Spaced Out", FromText("  spaced \t out \n"))

	// Already-capitalized and non-letter leading characters pass through.
	assert.Equal(t, "Hello 123 World", FromText("Hello 123 world"))

	// Words starting with a multi-byte rune are left alone rather than
	// having their first byte mangled.
	got := FromText("über alles")
	assert.Equal(t, "über Alles", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "日本語 の Text", FromText("日本語 の text"))

	assert.Equal(t, "", FromText(""))
	assert.Equal(t, "", FromText("   "))
}

func TestForFirstMessage(t *testing.T) {
	assert.Equal(t, "Describe This Picture", ForFirstMessage("describe this picture", 2, "New Chat"))

	// Image-only messages fall back to the placeholder title.
	assert.Equal(t, "Images", ForFirstMessage("", 1, "New Chat"))
	assert.Equal(t, "Images", ForFirstMessage("   ", 3, "New Chat"))

	// No content at all keeps the current title.
	assert.Equal(t, "New Chat", ForFirstMessage("", 0, "New Chat"))
}
