// Package titles derives human-readable chat titles from message content.
package titles

import "strings"

const (
	Default = "New Chat"

	// Title used when a chat's first message carries images but no text.
	imageOnly = "Images"

	maxWords = 8
)

// FromText derives a chat title from message text: the first eight
// whitespace-separated words, each with its first letter capitalized.
// Capitalization is ASCII only, which is all the original dashboard did.
func FromText(text string) string {
	words := strings.Fields(text)
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	for i, word := range words {
		words[i] = capitalize(word)
	}
	return strings.Join(words, " ")
}

// capitalize uppercases a leading a-z byte only; words starting with
// anything else, multi-byte runes included, pass through untouched.
func capitalize(word string) string {
	if c := word[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + word[1:]
	}
	return word
}

// ForFirstMessage picks the title applied when a chat receives its first
// user message: content-derived text when there is any, the image
// placeholder for image-only messages, otherwise the current title is kept.
func ForFirstMessage(content string, imageCount int, current string) string {
	if title := FromText(content); title != "" {
		return title
	}
	if imageCount > 0 {
		return imageOnly
	}
	return current
}
