package repository

import (
	"context"

	"github.com/m3rciful/blikbot/internal/domain/model"
)

// OrderRepository describes persistence operations with orders.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order model.NewOrder) (string, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	AttachPaymentCode(ctx context.Context, orderID, encrypted string, operatorID int64) error
	MarkPaid(ctx context.Context, orderID string) error
}

// OperatorRepository describes persistence operations with operators.
type OperatorRepository interface {
	SetOperatorAvailability(ctx context.Context, operatorID int64, available bool, role string) error
	FindAvailableOperator(ctx context.Context) (int64, error)
}

// Store aggregates the repositories used by the order lifecycle.
type Store interface {
	OrderRepository
	OperatorRepository
	Ping(ctx context.Context) error
	Close() error
}
