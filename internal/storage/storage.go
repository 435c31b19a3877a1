// Package storage holds helpers shared by the order store backends.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultReservationWindow is how long an order is held after creation.
const DefaultReservationWindow = 30 * time.Minute

const orderIDBytes = 6

// Options configures behaviour common to all store backends.
type Options struct {
	ReservationWindow time.Duration
	Now               func() time.Time
	NewID             func() (string, error)
}

// Normalize fills zero values with defaults.
func (o Options) Normalize() Options {
	if o.ReservationWindow <= 0 {
		o.ReservationWindow = DefaultReservationWindow
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = NewOrderID
	}
	return o
}

// NewOrderID returns a short random hex identifier.
func NewOrderID() (string, error) {
	b := make([]byte, orderIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate order id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
