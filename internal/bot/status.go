package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/blikbot/core/buildinfo"
)

const (
	commandStatus = "status"

	msgAdminOnly = "This command is only available to the bot admin."
)

// status reports the build and outbound queue counters to the admin.
func (b *Bot) status(c tele.Context) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Version: %s (%s)", buildinfo.Version, buildinfo.Commit)
	if buildinfo.Date != "" {
		fmt.Fprintf(&sb, "\nBuilt: %s", buildinfo.Date)
	}
	if _, d := b.out.bound(); d != nil {
		fmt.Fprintf(&sb, "\nNotifications sent: %d, failed: %d", d.Sent(), d.ErrorCount())
	} else {
		sb.WriteString("\nNotification queue: off")
	}
	return c.Send(sb.String())
}
