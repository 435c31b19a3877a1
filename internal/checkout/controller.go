// Package checkout drives the order and BLIK payment dialogue: it validates
// order forms, reserves orders, assigns operators, seals payment codes and
// finalizes payments confirmed by operators.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/blikbot/core/logger"
	domainerrors "github.com/m3rciful/blikbot/internal/domain/errors"
	"github.com/m3rciful/blikbot/internal/domain/model"
	"github.com/m3rciful/blikbot/internal/domain/repository"
)

// Commands understood by the controller.
const (
	CommandStart       = "start"
	CommandOrder       = "order"
	CommandCancel      = "cancel"
	CommandAvailable   = "available"
	CommandUnavailable = "unavailable"
	CommandConfirmBlik = "confirm_blik"
)

var blikCodeRe = regexp.MustCompile(`^[0-9]{6}$`)

// Event is one inbound user action delivered by the transport.
type Event struct {
	// Command is the command name without the leading slash; empty for plain text.
	Command     string
	Args        string
	SenderID    int64
	ChatID      int64
	DisplayName string
	Text        string
}

// ConversationID returns the key of the dialogue the event belongs to.
func (e Event) ConversationID() int64 {
	if e.ChatID != 0 {
		return e.ChatID
	}
	return e.SenderID
}

// Keyboard describes reply keyboard options attached to a message.
type Keyboard struct {
	Rows    [][]string
	OneTime bool
	Remove  bool
}

// Messenger carries outbound messages.
type Messenger interface {
	// Reply answers in the conversation that triggered the event.
	Reply(ctx context.Context, chatID int64, text string, kb *Keyboard) error
	// Notify messages a third party; delivery is best effort.
	Notify(ctx context.Context, chatID int64, text string) error
}

// Sealer encrypts payment codes for storage.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
}

// Settings holds the business constants of the order flow.
type Settings struct {
	MinTotal          decimal.Decimal
	ReservationWindow time.Duration
	ShippingSLA       time.Duration
	Currency          string
}

// DefaultSettings returns the stock order flow settings.
func DefaultSettings() Settings {
	return Settings{
		MinTotal:          decimal.NewFromInt(500),
		ReservationWindow: 30 * time.Minute,
		ShippingSLA:       12 * time.Hour,
		Currency:          "PLN",
	}
}

func (s Settings) normalize() Settings {
	def := DefaultSettings()
	if s.MinTotal.IsNegative() {
		s.MinTotal = decimal.Zero
	}
	if s.ReservationWindow <= 0 {
		s.ReservationWindow = def.ReservationWindow
	}
	if s.ShippingSLA <= 0 {
		s.ShippingSLA = def.ShippingSLA
	}
	if strings.TrimSpace(s.Currency) == "" {
		s.Currency = def.Currency
	}
	return s
}

// Controller is the order lifecycle state machine.
type Controller struct {
	store    repository.Store
	sealer   Sealer
	out      Messenger
	sessions *Sessions
	settings Settings
	now      func() time.Time
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController wires the state machine to its collaborators.
func NewController(store repository.Store, sealer Sealer, out Messenger, settings Settings, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		sealer:   sealer,
		out:      out,
		sessions: NewSessions(),
		settings: settings.normalize(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Conversation returns the current dialogue state of a conversation.
func (c *Controller) Conversation(conversationID int64) Conversation {
	return c.sessions.Get(conversationID)
}

// InProgress reports whether the conversation is inside the order dialogue.
func (c *Controller) InProgress(conversationID int64) bool {
	return c.sessions.Get(conversationID).Stage() != StageIdle
}

// Handle processes one inbound event. User-level failures are answered in
// the chat and return nil; the returned error signals internal failures.
func (c *Controller) Handle(ctx context.Context, ev Event) error {
	switch strings.ToLower(strings.TrimPrefix(ev.Command, "/")) {
	case CommandStart:
		return c.reply(ctx, ev, c.msgStart(), nil)
	case CommandAvailable:
		return c.setAvailability(ctx, ev, true)
	case CommandUnavailable:
		return c.setAvailability(ctx, ev, false)
	case CommandConfirmBlik:
		return c.confirmBlik(ctx, ev)
	case CommandOrder:
		return c.sessions.Do(ev.ConversationID(), func(Conversation) (Conversation, error) {
			return AwaitingOrderForm{}, c.reply(ctx, ev, msgOrderForm, &Keyboard{Remove: true})
		})
	case CommandCancel:
		return c.sessions.Do(ev.ConversationID(), func(cur Conversation) (Conversation, error) {
			if cur.Stage() == StageIdle {
				return cur, c.reply(ctx, ev, msgNothingToClear, nil)
			}
			return Idle{}, c.reply(ctx, ev, msgCancelled, &Keyboard{Remove: true})
		})
	case "":
		return c.sessions.Do(ev.ConversationID(), func(cur Conversation) (Conversation, error) {
			return c.handleText(ctx, ev, cur)
		})
	default:
		return c.reply(ctx, ev, msgIdleHint, nil)
	}
}

func (c *Controller) handleText(ctx context.Context, ev Event, cur Conversation) (Conversation, error) {
	switch st := cur.(type) {
	case AwaitingOrderForm:
		return c.submitForm(ctx, ev, st)
	case AwaitingPaymentMethod:
		return c.choosePayment(ctx, ev, st)
	case AwaitingBlikCode:
		return c.submitCode(ctx, ev, st)
	default:
		if label := matchLabel(ev.Text); label != "" {
			c.logNoActiveOrder(ctx, label)
			return cur, c.reply(ctx, ev, msgNoActiveOrder, &Keyboard{Remove: true})
		}
		return cur, c.reply(ctx, ev, msgIdleHint, nil)
	}
}

func (c *Controller) submitForm(ctx context.Context, ev Event, cur AwaitingOrderForm) (Conversation, error) {
	form := ParseOrderForm(ev.Text, ev.DisplayName)
	if form.Total.LessThan(c.settings.MinTotal) {
		logger.Info(ctx, logger.ComponentOrders, "order.below_minimum",
			slog.String("status", "skip"),
			slog.String("err_code", domainerrors.Kind(domainerrors.ErrValidation)),
			slog.String("total", form.Total.StringFixed(2)),
			slog.Int("items", len(form.Items)),
		)
		return cur, c.reply(ctx, ev, c.msgBelowMinimum(form), nil)
	}

	orderID, err := c.store.CreateOrder(ctx, model.NewOrder{
		UserID:    ev.SenderID,
		Name:      form.Name,
		ItemsText: form.ItemsText,
		Total:     form.Total,
	})
	if err != nil {
		return cur, c.internalFailure(ctx, ev, "order.create", err)
	}
	logger.Info(ctx, logger.ComponentOrders, "order.reserved",
		slog.String("status", "ok"),
		slog.String("order_id", orderID),
		slog.String("total", form.Total.StringFixed(2)),
		slog.Int("items", len(form.Items)),
	)
	return AwaitingPaymentMethod{OrderID: orderID}, c.reply(ctx, ev, c.msgReserved(orderID, form), paymentKeyboard())
}

func (c *Controller) choosePayment(ctx context.Context, ev Event, cur AwaitingPaymentMethod) (Conversation, error) {
	switch matchLabel(ev.Text) {
	case LabelBlik:
		return c.selectBlik(ctx, ev, cur)
	case LabelCrypto:
		return cur, c.reply(ctx, ev, c.msgManualMethod(LabelCrypto, cur.OrderID), paymentKeyboard())
	case LabelTransfer:
		return cur, c.reply(ctx, ev, c.msgManualMethod(LabelTransfer, cur.OrderID), paymentKeyboard())
	default:
		return cur, c.reply(ctx, ev, msgChooseMethod, paymentKeyboard())
	}
}

func (c *Controller) selectBlik(ctx context.Context, ev Event, cur AwaitingPaymentMethod) (Conversation, error) {
	if cur.OrderID == "" {
		c.logNoActiveOrder(ctx, LabelBlik)
		return Idle{}, c.reply(ctx, ev, msgNoActiveOrder, &Keyboard{Remove: true})
	}
	operatorID, err := c.store.FindAvailableOperator(ctx)
	if errors.Is(err, domainerrors.ErrNotFound) {
		logger.Info(ctx, logger.ComponentOperators, "operator.assign",
			slog.String("status", "skip"),
			slog.String("order_id", cur.OrderID),
			slog.String("err_code", domainerrors.Kind(domainerrors.ErrNoAvailableOperator)),
		)
		return cur, c.reply(ctx, ev, msgNoOperator, paymentKeyboard())
	}
	if err != nil {
		return cur, c.internalFailure(ctx, ev, "operator.assign", err)
	}
	logger.Info(ctx, logger.ComponentOperators, "operator.assign",
		slog.String("status", "ok"),
		slog.String("order_id", cur.OrderID),
		slog.Int64("operator_id", operatorID),
	)
	next := AwaitingBlikCode{OrderID: cur.OrderID, OperatorID: operatorID}
	return next, c.reply(ctx, ev, c.msgAskCode(), &Keyboard{Remove: true})
}

func (c *Controller) submitCode(ctx context.Context, ev Event, cur AwaitingBlikCode) (Conversation, error) {
	code := strings.TrimSpace(ev.Text)
	if !blikCodeRe.MatchString(code) {
		logger.Info(ctx, logger.ComponentOrders, "code.invalid",
			slog.String("status", "skip"),
			slog.String("order_id", cur.OrderID),
			slog.String("err_code", domainerrors.Kind(domainerrors.ErrValidation)),
			slog.Int("code_len", len(code)),
		)
		return cur, c.reply(ctx, ev, msgBadCode, nil)
	}

	order, err := c.store.GetOrder(ctx, cur.OrderID)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return Idle{}, c.reply(ctx, ev, msgNoActiveOrder, nil)
	}
	if err != nil {
		return cur, c.internalFailure(ctx, ev, "order.load", err)
	}
	c.warnIfExpired(ctx, order, "code.attach")

	sealed, err := c.sealer.Encrypt(code)
	if err != nil {
		return cur, c.internalFailure(ctx, ev, "code.encrypt", err)
	}
	err = c.store.AttachPaymentCode(ctx, cur.OrderID, sealed, cur.OperatorID)
	switch {
	case errors.Is(err, domainerrors.ErrNotFound), errors.Is(err, domainerrors.ErrInvalidTransition):
		logger.Warn(ctx, logger.ComponentOrders, "code.attach",
			slog.String("status", "skip"),
			slog.String("order_id", cur.OrderID),
			slog.String("err_code", domainerrors.Kind(err)),
		)
		return Idle{}, c.reply(ctx, ev, msgCodeRejected, nil)
	case err != nil:
		return cur, c.internalFailure(ctx, ev, "code.attach", err)
	}
	logger.Info(ctx, logger.ComponentOrders, "code.attach",
		slog.String("status", "ok"),
		slog.String("order_id", cur.OrderID),
		slog.Int64("operator_id", cur.OperatorID),
	)

	// The stored code is already committed; a lost operator message is logged, not rolled back.
	if err := c.out.Notify(ctx, cur.OperatorID, c.msgOperatorCode(cur.OrderID, code)); err != nil {
		logger.Error(ctx, logger.ComponentOperators, "operator.notify",
			slog.String("status", "fail"),
			slog.String("order_id", cur.OrderID),
			slog.Int64("operator_id", cur.OperatorID),
			slog.String("err", err.Error()),
		)
	}
	return Idle{}, c.reply(ctx, ev, c.msgCodeForwarded(), nil)
}

func (c *Controller) confirmBlik(ctx context.Context, ev Event) error {
	fields := strings.Fields(ev.Args)
	if len(fields) == 0 {
		logger.Info(ctx, logger.ComponentOperators, "order.confirm",
			slog.String("status", "skip"),
			slog.String("err_code", domainerrors.Kind(domainerrors.ErrUsage)),
		)
		return c.reply(ctx, ev, msgConfirmUsage, nil)
	}
	orderID := fields[0]

	order, err := c.store.GetOrder(ctx, orderID)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return c.reply(ctx, ev, msgOrderNotFound, nil)
	}
	if err != nil {
		return c.internalFailure(ctx, ev, "order.confirm", err)
	}
	if order.AssignedOperatorID != nil && *order.AssignedOperatorID != ev.SenderID {
		logger.Warn(ctx, logger.ComponentOperators, "order.confirm",
			slog.String("status", "skip"),
			slog.String("order_id", orderID),
			slog.Int64("operator_id", ev.SenderID),
			slog.String("err_code", domainerrors.Kind(domainerrors.ErrUnauthorized)),
		)
		return c.reply(ctx, ev, msgNotAssigned, nil)
	}
	switch order.PaymentStatus {
	case model.PaymentStatusPaid:
		return c.reply(ctx, ev, msgAlreadyPaid(orderID), nil)
	case model.PaymentStatusReserved:
		return c.reply(ctx, ev, msgNoCodeYet(orderID), nil)
	}
	c.warnIfExpired(ctx, order, "order.confirm")

	err = c.store.MarkPaid(ctx, orderID)
	switch {
	case errors.Is(err, domainerrors.ErrInvalidTransition):
		return c.reply(ctx, ev, msgAlreadyPaid(orderID), nil)
	case errors.Is(err, domainerrors.ErrNotFound):
		return c.reply(ctx, ev, msgOrderNotFound, nil)
	case err != nil:
		return c.internalFailure(ctx, ev, "order.confirm", err)
	}
	logger.Info(ctx, logger.ComponentOrders, "order.paid",
		slog.String("status", "ok"),
		slog.String("order_id", orderID),
		slog.Int64("operator_id", ev.SenderID),
	)

	if err := c.reply(ctx, ev, msgConfirmed(orderID), nil); err != nil {
		return err
	}
	if err := c.out.Notify(ctx, order.UserID, c.msgPaymentConfirmed()); err != nil {
		logger.Error(ctx, logger.ComponentOrders, "customer.notify",
			slog.String("status", "fail"),
			slog.String("order_id", orderID),
			slog.String("err", err.Error()),
		)
	}
	return nil
}

func (c *Controller) setAvailability(ctx context.Context, ev Event, available bool) error {
	if err := c.store.SetOperatorAvailability(ctx, ev.SenderID, available, model.RoleManager); err != nil {
		return c.internalFailure(ctx, ev, "operator.availability", err)
	}
	logger.Info(ctx, logger.ComponentOperators, "operator.availability",
		slog.String("status", "ok"),
		slog.Int64("operator_id", ev.SenderID),
		slog.Bool("available", available),
	)
	if available {
		return c.reply(ctx, ev, msgAvailable, nil)
	}
	return c.reply(ctx, ev, msgUnavailable, nil)
}

// warnIfExpired records actions taken after the reservation window. Expiry is
// advisory and does not block the action.
func (c *Controller) warnIfExpired(ctx context.Context, order *model.Order, action string) {
	if !order.ReservationExpired(c.now()) {
		return
	}
	logger.Warn(ctx, logger.ComponentOrders, "reservation.expired",
		slog.String("order_id", order.ID),
		slog.String("op", action),
		slog.Time("reserved_until", order.ReservedUntil),
	)
}

func (c *Controller) internalFailure(ctx context.Context, ev Event, op string, err error) error {
	logger.Error(ctx, logger.ComponentOrders, op,
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
		slog.String("err_code", domainerrors.Kind(err)),
	)
	if replyErr := c.reply(ctx, ev, msgInternalError, nil); replyErr != nil {
		return errors.Join(err, replyErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Controller) logNoActiveOrder(ctx context.Context, label string) {
	logger.Info(ctx, logger.ComponentOrders, "payment.select",
		slog.String("status", "skip"),
		slog.String("payment_method", strings.ToLower(label)),
		slog.String("err_code", domainerrors.Kind(domainerrors.ErrNoActiveOrder)),
	)
}

func (c *Controller) reply(ctx context.Context, ev Event, text string, kb *Keyboard) error {
	return c.out.Reply(ctx, ev.ConversationID(), text, kb)
}

func paymentKeyboard() *Keyboard {
	return &Keyboard{
		Rows:    [][]string{{LabelBlik}, {LabelCrypto}, {LabelTransfer}},
		OneTime: true,
	}
}

func matchLabel(text string) string {
	t := strings.TrimSpace(text)
	for _, label := range []string{LabelBlik, LabelCrypto, LabelTransfer} {
		if strings.EqualFold(t, label) {
			return label
		}
	}
	return ""
}
