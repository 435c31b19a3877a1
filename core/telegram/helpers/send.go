package helpers

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/blikbot/core/logger"
	"github.com/m3rciful/blikbot/core/telegram/sender"
)

// Sender is the part of *tele.Bot used to deliver messages.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// SendText delivers plain text to chatID and waits for the API answer.
func SendText(s Sender, chatID int64, text string, opts ...interface{}) error {
	_, err := s.Send(tele.ChatID(chatID), text, opts...)
	return err
}

// Enqueue hands job to the dispatcher. Without a dispatcher, or when its
// queue is full or closed, the job runs synchronously instead.
func Enqueue(ctx context.Context, d *sender.Dispatcher, job sender.Job) error {
	if d == nil {
		return job.Run(ctx)
	}
	err := d.Enqueue(ctx, job)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("op", job.Action),
			slog.String("err", err.Error()),
		)
		return job.Run(ctx)
	}
	return err
}
