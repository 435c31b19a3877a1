package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/blikbot/internal/checkout"
)

// EventFrom converts a Telegram update into a controller event. A message
// starting with "/" is a command; "/cmd@bot args" yields Command "cmd" and
// Args "args".
func EventFrom(c tele.Context) checkout.Event {
	ev := checkout.Event{Text: c.Text()}
	if user := c.Sender(); user != nil {
		ev.SenderID = user.ID
		ev.DisplayName = displayName(user)
	}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}

	text := strings.TrimSpace(ev.Text)
	if !strings.HasPrefix(text, "/") {
		return ev
	}
	head, rest, _ := strings.Cut(text, " ")
	head, _, _ = strings.Cut(strings.TrimPrefix(head, "/"), "@")
	ev.Command = strings.ToLower(head)
	ev.Args = strings.TrimSpace(rest)
	return ev
}

func displayName(u *tele.User) string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

// conversationID mirrors checkout.Event.ConversationID for a raw update.
func conversationID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil && chat.ID != 0 {
		return chat.ID
	}
	if user := c.Sender(); user != nil {
		return user.ID
	}
	return 0
}
