package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	domainerrors "github.com/m3rciful/blikbot/internal/domain/errors"
	"github.com/m3rciful/blikbot/internal/domain/model"
	"github.com/m3rciful/blikbot/internal/storage"
)

var fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

var orderColumns = []string{
	"id", "user_id", "name", "items", "total", "payment_method", "payment_status",
	"blik_code_enc", "assigned_operator_id", "reserved_until", "tracking_number",
}

func newMockStore(t *testing.T, ids ...string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	next := 0
	opts := storage.Options{
		Now: func() time.Time { return fixedNow },
		NewID: func() (string, error) {
			if next >= len(ids) {
				return "", errors.New("no more ids")
			}
			id := ids[next]
			next++
			return id, nil
		},
	}
	return New(sqlx.NewDb(db, "postgres"), opts), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateOrder(t *testing.T) {
	s, mock := newMockStore(t, "abc123def456")
	total := decimal.NewFromInt(600)
	mock.ExpectExec(insertOrderQuery).
		WithArgs("abc123def456", int64(42), "Jan", "Widget/2/300", total,
			"", "reserved", fixedNow.Add(30*time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.CreateOrder(context.Background(), model.NewOrder{
		UserID: 42, Name: "Jan", ItemsText: "Widget/2/300", Total: total,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "abc123def456" {
		t.Fatalf("unexpected id %s", id)
	}
	expectationsMet(t, mock)
}

func TestCreateOrderRetriesOnIDCollision(t *testing.T) {
	s, mock := newMockStore(t, "first", "second")
	mock.ExpectExec(insertOrderQuery).
		WithArgs("first", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectExec(insertOrderQuery).
		WithArgs("second", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.CreateOrder(context.Background(), model.NewOrder{UserID: 1, Total: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "second" {
		t.Fatalf("expected retry id, got %s", id)
	}
	expectationsMet(t, mock)
}

func TestCreateOrderPersistenceError(t *testing.T) {
	s, mock := newMockStore(t, "only")
	mock.ExpectExec(insertOrderQuery).WillReturnError(errors.New("connection reset"))

	_, err := s.CreateOrder(context.Background(), model.NewOrder{UserID: 1, Total: decimal.NewFromInt(500)})
	if !errors.Is(err, domainerrors.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestGetOrder(t *testing.T) {
	s, mock := newMockStore(t)
	reserved := fixedNow.Add(30 * time.Minute)
	mock.ExpectQuery(selectOrderQuery).WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(
			"abc", int64(42), "Jan", "Widget/2/300", "600.00", "blik", "pending",
			"n:t:c", int64(7), reserved, nil,
		))

	o, err := s.GetOrder(context.Background(), "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o.ID != "abc" || o.UserID != 42 || !o.Total.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("unexpected order %+v", o)
	}
	if o.PaymentMethod != model.PaymentMethodBlik || o.PaymentStatus != model.PaymentStatusPending {
		t.Fatalf("unexpected payment fields %s/%s", o.PaymentMethod, o.PaymentStatus)
	}
	if o.EncryptedPaymentCode == nil || *o.EncryptedPaymentCode != "n:t:c" {
		t.Fatalf("unexpected code %v", o.EncryptedPaymentCode)
	}
	if o.AssignedOperatorID == nil || *o.AssignedOperatorID != 7 {
		t.Fatalf("unexpected operator %v", o.AssignedOperatorID)
	}
	if o.TrackingNumber != nil || !o.ReservedUntil.Equal(reserved) {
		t.Fatalf("unexpected tracking/reservation %+v", o)
	}
	expectationsMet(t, mock)
}

func TestGetOrderNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(selectOrderQuery).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	if _, err := s.GetOrder(context.Background(), "missing"); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestAttachPaymentCode(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(attachCodeQuery).
		WithArgs("n:t:c", int64(7), "blik", "pending", "abc", "reserved").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.AttachPaymentCode(context.Background(), "abc", "n:t:c", 7); err != nil {
		t.Fatalf("attach: %v", err)
	}
	expectationsMet(t, mock)
}

func TestAttachPaymentCodeMissingOrder(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(attachCodeQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectStatusQuery).WithArgs("abc").WillReturnError(sql.ErrNoRows)

	if err := s.AttachPaymentCode(context.Background(), "abc", "n:t:c", 7); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestAttachPaymentCodeWrongStatus(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(attachCodeQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectStatusQuery).WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"payment_status"}).AddRow("paid"))

	err := s.AttachPaymentCode(context.Background(), "abc", "n:t:c", 7)
	if !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestMarkPaid(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(markPaidQuery).
		WithArgs("paid", "abc", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.MarkPaid(context.Background(), "abc"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	expectationsMet(t, mock)
}

func TestMarkPaidMissingOrder(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(markPaidQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectStatusQuery).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	if err := s.MarkPaid(context.Background(), "nope"); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestMarkPaidDatabaseError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(markPaidQuery).WillReturnError(errors.New("db down"))

	if err := s.MarkPaid(context.Background(), "abc"); !errors.Is(err, domainerrors.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestSetOperatorAvailability(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(upsertOperatorQuery).
		WithArgs(int64(9), "manager", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.SetOperatorAvailability(context.Background(), 9, true, model.RoleManager); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	expectationsMet(t, mock)
}

func TestFindAvailableOperator(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(findOperatorQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(findOperatorQuery).WillReturnError(sql.ErrNoRows)

	id, err := s.FindAvailableOperator(context.Background())
	if err != nil || id != 3 {
		t.Fatalf("expected operator 3, got %d (%v)", id, err)
	}
	if _, err := s.FindAvailableOperator(context.Background()); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectationsMet(t, mock)
}
