// Package memory implements the order store in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	domainerrors "github.com/m3rciful/blikbot/internal/domain/errors"
	"github.com/m3rciful/blikbot/internal/domain/model"
	"github.com/m3rciful/blikbot/internal/domain/repository"
	"github.com/m3rciful/blikbot/internal/storage"
)

// Store keeps orders and operators in maps guarded by a single mutex.
type Store struct {
	mu        sync.Mutex
	opts      storage.Options
	orders    map[string]model.Order
	operators map[int64]model.Operator
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New(opts storage.Options) *Store {
	return &Store{
		opts:      opts.Normalize(),
		orders:    make(map[string]model.Order),
		operators: make(map[int64]model.Operator),
	}
}

func (s *Store) CreateOrder(_ context.Context, in model.NewOrder) (string, error) {
	id, err := s.opts.NewID()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainerrors.ErrPersistence, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[id]; exists {
		return "", fmt.Errorf("%w: duplicate order id %s", domainerrors.ErrPersistence, id)
	}
	s.orders[id] = model.Order{
		ID:            id,
		UserID:        in.UserID,
		Name:          in.Name,
		ItemsText:     in.ItemsText,
		Total:         in.Total,
		PaymentStatus: model.PaymentStatusReserved,
		ReservedUntil: s.opts.Now().Add(s.opts.ReservationWindow),
	}
	return id, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) AttachPaymentCode(_ context.Context, orderID, encrypted string, operatorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domainerrors.ErrNotFound
	}
	if err := advance(&o, model.PaymentStatusReserved, model.PaymentStatusPending); err != nil {
		return err
	}
	op := operatorID
	enc := encrypted
	o.PaymentMethod = model.PaymentMethodBlik
	o.AssignedOperatorID = &op
	o.EncryptedPaymentCode = &enc
	s.orders[orderID] = o
	return nil
}

func (s *Store) MarkPaid(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domainerrors.ErrNotFound
	}
	if err := advance(&o, model.PaymentStatusPending, model.PaymentStatusPaid); err != nil {
		return err
	}
	o.EncryptedPaymentCode = nil
	s.orders[orderID] = o
	return nil
}

// advance moves o from status from to status to. It fails when o is not in
// from or when the move would not go forward.
func advance(o *model.Order, from, to model.PaymentStatus) error {
	if o.PaymentStatus != from || !from.CanAdvanceTo(to) {
		return fmt.Errorf("%w: order %s is %s", domainerrors.ErrInvalidTransition, o.ID, o.PaymentStatus)
	}
	o.PaymentStatus = to
	return nil
}

func (s *Store) SetOperatorAvailability(_ context.Context, operatorID int64, available bool, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operators[operatorID] = model.Operator{ID: operatorID, Role: role, Available: available}
	return nil
}

// FindAvailableOperator returns the lowest available operator id.
func (s *Store) FindAvailableOperator(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  int64
		found bool
	)
	for id, op := range s.operators {
		if !op.Available {
			continue
		}
		if !found || id < best {
			best, found = id, true
		}
	}
	if !found {
		return 0, domainerrors.ErrNotFound
	}
	return best, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneOrder(o model.Order) *model.Order {
	out := o
	if o.EncryptedPaymentCode != nil {
		v := *o.EncryptedPaymentCode
		out.EncryptedPaymentCode = &v
	}
	if o.AssignedOperatorID != nil {
		v := *o.AssignedOperatorID
		out.AssignedOperatorID = &v
	}
	if o.TrackingNumber != nil {
		v := *o.TrackingNumber
		out.TrackingNumber = &v
	}
	return &out
}
