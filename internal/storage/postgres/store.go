// Package postgres implements the order store on PostgreSQL through sqlx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/blikbot/core/logger"
	domainerrors "github.com/m3rciful/blikbot/internal/domain/errors"
	"github.com/m3rciful/blikbot/internal/domain/model"
	"github.com/m3rciful/blikbot/internal/domain/repository"
	"github.com/m3rciful/blikbot/internal/storage"
)

const (
	component = "db.orders"

	uniqueViolation = "23505"
	createAttempts  = 3
)

const (
	insertOrderQuery = `INSERT INTO orders (id, user_id, name, items, total, payment_method, payment_status, reserved_until)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	selectOrderQuery = `SELECT id, user_id, name, items, total, payment_method, payment_status,
       blik_code_enc, assigned_operator_id, reserved_until, tracking_number
FROM orders WHERE id = $1`

	selectStatusQuery = `SELECT payment_status FROM orders WHERE id = $1`

	attachCodeQuery = `UPDATE orders
SET blik_code_enc = $1, assigned_operator_id = $2, payment_method = $3, payment_status = $4
WHERE id = $5 AND payment_status = $6`

	markPaidQuery = `UPDATE orders SET payment_status = $1, blik_code_enc = NULL
WHERE id = $2 AND payment_status = $3`

	upsertOperatorQuery = `INSERT INTO operators (id, role, available) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, available = EXCLUDED.available`

	findOperatorQuery = `SELECT id FROM operators WHERE available ORDER BY id LIMIT 1`
)

// Store is the PostgreSQL backed order store.
type Store struct {
	db   *sqlx.DB
	opts storage.Options
}

var _ repository.Store = (*Store)(nil)

// New wraps an open connection pool.
func New(db *sqlx.DB, opts storage.Options) *Store {
	return &Store{db: db, opts: opts.Normalize()}
}

func (s *Store) CreateOrder(ctx context.Context, in model.NewOrder) (string, error) {
	reservedUntil := s.opts.Now().Add(s.opts.ReservationWindow)
	var lastErr error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		id, err := s.opts.NewID()
		if err != nil {
			return "", fmt.Errorf("create order: %w: %w", domainerrors.ErrPersistence, err)
		}
		_, err = s.db.ExecContext(ctx, insertOrderQuery,
			id, in.UserID, in.Name, in.ItemsText, in.Total,
			model.PaymentMethodUnset, model.PaymentStatusReserved, reservedUntil,
		)
		if err == nil {
			logger.Debug(ctx, component, "order.create",
				slog.String("status", "ok"),
				slog.String("order_id", id),
				slog.Int("attempts", attempt),
			)
			return id, nil
		}
		lastErr = err
		var pqErr *pq.Error
		if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
			break
		}
	}
	logger.Error(ctx, component, "order.create",
		slog.String("status", "fail"),
		slog.String("err", lastErr.Error()),
	)
	return "", fmt.Errorf("create order: %w: %w", domainerrors.ErrPersistence, lastErr)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	if err := s.db.GetContext(ctx, &o, selectOrderQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, fmt.Errorf("get order %s: %w: %w", id, domainerrors.ErrPersistence, err)
	}
	return &o, nil
}

func (s *Store) AttachPaymentCode(ctx context.Context, orderID, encrypted string, operatorID int64) error {
	res, err := s.db.ExecContext(ctx, attachCodeQuery,
		encrypted, operatorID, model.PaymentMethodBlik, model.PaymentStatusPending,
		orderID, model.PaymentStatusReserved,
	)
	if err != nil {
		return fmt.Errorf("attach payment code %s: %w: %w", orderID, domainerrors.ErrPersistence, err)
	}
	return s.checkTransition(ctx, res, orderID)
}

func (s *Store) MarkPaid(ctx context.Context, orderID string) error {
	res, err := s.db.ExecContext(ctx, markPaidQuery,
		model.PaymentStatusPaid, orderID, model.PaymentStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark paid %s: %w: %w", orderID, domainerrors.ErrPersistence, err)
	}
	return s.checkTransition(ctx, res, orderID)
}

// checkTransition tells a missing row apart from a row in the wrong status
// when a guarded update touched nothing.
func (s *Store) checkTransition(ctx context.Context, res sql.Result, orderID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w: %w", domainerrors.ErrPersistence, err)
	}
	if n > 0 {
		return nil
	}
	var current model.PaymentStatus
	if err := s.db.GetContext(ctx, &current, selectStatusQuery, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainerrors.ErrNotFound
		}
		return fmt.Errorf("load status %s: %w: %w", orderID, domainerrors.ErrPersistence, err)
	}
	return fmt.Errorf("%w: order %s is %s", domainerrors.ErrInvalidTransition, orderID, current)
}

func (s *Store) SetOperatorAvailability(ctx context.Context, operatorID int64, available bool, role string) error {
	if _, err := s.db.ExecContext(ctx, upsertOperatorQuery, operatorID, role, available); err != nil {
		return fmt.Errorf("upsert operator %d: %w: %w", operatorID, domainerrors.ErrPersistence, err)
	}
	logger.Info(ctx, "db.operators", "operator.availability",
		slog.String("status", "ok"),
		slog.Int64("operator_id", operatorID),
		slog.Bool("available", available),
	)
	return nil
}

func (s *Store) FindAvailableOperator(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.GetContext(ctx, &id, findOperatorQuery); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domainerrors.ErrNotFound
		}
		return 0, fmt.Errorf("find operator: %w: %w", domainerrors.ErrPersistence, err)
	}
	return id, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
