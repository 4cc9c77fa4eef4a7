package domain

import "errors"

var (
	ErrSlotConflict           = errors.New("slot conflict")
	ErrHoldExpired            = errors.New("hold expired")
	ErrReservationExpired     = errors.New("reservation expired")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrPaymentNotSatisfied    = errors.New("payment not satisfied")
	ErrPaymentFailed          = errors.New("payment failed")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotFound               = errors.New("not found")
	ErrSerializationFailure   = errors.New("serialization failure")
	ErrInvalidInput           = errors.New("invalid input")
)
