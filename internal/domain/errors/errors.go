package errors

import (
	"context"
	"errors"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("not the assigned operator")
	ErrNoAvailableOperator = errors.New("no available operator")
	ErrUsage               = errors.New("invalid usage")
	ErrPersistence         = errors.New("persistence failure")
	ErrInvalidTransition   = errors.New("invalid payment status transition")
	ErrNoActiveOrder       = errors.New("no active order")
)

// Kind maps an error to a short stable code used in logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNoAvailableOperator):
		return "no_operator"
	case errors.Is(err, ErrUsage):
		return "usage"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNoActiveOrder):
		return "no_active_order"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
