package middleware

import tele "gopkg.in/telebot.v4"

const countersKey = "reply_counters"

// replyCounters tallies what a handler sent back for the handler summary log.
type replyCounters struct {
	messages int
	keyboard bool
}

// metricsContext counts messages sent through the update context.
type metricsContext struct {
	tele.Context
	counters *replyCounters
}

func (m metricsContext) count(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	m.counters.messages++
	if hasKeyboard(opts) {
		m.counters.keyboard = true
	}
	return nil
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

// Reply proxies tele.Context.Reply.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

// MessageMetricsMiddleware wraps the context so GetCounters can report how
// many messages the handler sent and whether any carried a keyboard.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		counters := &replyCounters{}
		c.Set(countersKey, counters)
		return next(metricsContext{Context: c, counters: counters})
	}
}

// GetCounters reads the message count and keyboard flag of the update.
func GetCounters(c tele.Context) (int, bool) {
	counters, ok := c.Get(countersKey).(*replyCounters)
	if !ok {
		return 0, false
	}
	return counters.messages, counters.keyboard
}
