package fanout

import (
	"strings"
	"unicode/utf8"

	"github.com/tbourn/group-chat-backend/internal/domain"
)

// ExcerptRunes is the maximum excerpt length, ellipsis included.
const ExcerptRunes = 100

const ellipsis = "..."

// Payload is the structured data stored with a notification and sent to
// the service worker.
type Payload struct {
	ChatID     string `json:"chat_id"`
	ChatSlug   string `json:"chat_slug"`
	ChatTitle  string `json:"chat_title"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	MessageID  string `json:"message_id"`
	Excerpt    string `json:"excerpt"`
	URL        string `json:"url"`
}

// Rendered is the content shared by every recipient of one message.
type Rendered struct {
	Title   string
	Body    string
	Payload Payload
}

// Render builds the notification content for msg.
func Render(room *domain.ChatRoom, sender *domain.User, msg *domain.Message) Rendered {
	name := sender.DisplayName()
	excerpt := Excerpt(msg.Content, ExcerptRunes)
	return Rendered{
		Title: "New message from " + name,
		Body:  excerpt,
		Payload: Payload{
			ChatID:     room.ID,
			ChatSlug:   room.Slug,
			ChatTitle:  room.Title,
			SenderID:   sender.ID,
			SenderName: name,
			MessageID:  msg.ID,
			Excerpt:    excerpt,
			URL:        "/chats/" + room.Slug,
		},
	}
}

// Excerpt flattens whitespace and shortens s to at most max runes, ending
// with "..." when cut. It never splits a multi-byte character.
func Excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - len(ellipsis)
	if keep <= 0 {
		return string([]rune(s)[:max])
	}
	return strings.TrimRight(string([]rune(s)[:keep]), " ") + ellipsis
}
