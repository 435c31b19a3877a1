// Package state keeps per-conversation session values for Telegram bots.
// It is domain-agnostic: callers choose the session type.
package state
