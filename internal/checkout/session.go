package checkout

import "github.com/m3rciful/blikbot/core/telegram/state"

// Stage names a step of the order dialogue.
type Stage string

const (
	StageIdle                  Stage = "idle"
	StageAwaitingOrderForm     Stage = "awaiting_order_form"
	StageAwaitingPaymentMethod Stage = "awaiting_payment_method"
	StageAwaitingBlikCode      Stage = "awaiting_blik_code"
)

// Conversation is the state of one customer dialogue. Only the types in this
// file implement it, so every stage carries exactly the data it needs.
type Conversation interface {
	Stage() Stage
	conversation()
}

// Idle means no order dialogue is in progress.
type Idle struct{}

// AwaitingOrderForm means the next text message is parsed as an order form.
type AwaitingOrderForm struct{}

// AwaitingPaymentMethod holds a reserved order waiting for a payment choice.
type AwaitingPaymentMethod struct {
	OrderID string
}

// AwaitingBlikCode holds a reserved order and the operator who will receive the code.
type AwaitingBlikCode struct {
	OrderID    string
	OperatorID int64
}

func (Idle) Stage() Stage                  { return StageIdle }
func (AwaitingOrderForm) Stage() Stage     { return StageAwaitingOrderForm }
func (AwaitingPaymentMethod) Stage() Stage { return StageAwaitingPaymentMethod }
func (AwaitingBlikCode) Stage() Stage      { return StageAwaitingBlikCode }

func (Idle) conversation()                  {}
func (AwaitingOrderForm) conversation()     {}
func (AwaitingPaymentMethod) conversation() {}
func (AwaitingBlikCode) conversation()      {}

// Sessions maps conversation ids to their dialogue state.
type Sessions = state.Store[Conversation]

// NewSessions returns a session table where unknown conversations are Idle.
// Conversations that return to Idle are dropped from the table.
func NewSessions() *Sessions {
	return state.NewStore(
		func() Conversation { return Idle{} },
		func(c Conversation) bool { return c == nil || c.Stage() == StageIdle },
	)
}
