package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly restricts the command to telegram.admin_id.
	AdminOnly bool
	// Hidden commands work but are left out of the Telegram menu.
	Hidden  bool
	Aliases []string
}

// Valid reports whether the command can be registered.
func (c Command) Valid() bool {
	return c.Handler != nil && c.Description != ""
}
