package app

import "errors"

var (
	ErrZeroAmount       = errors.New("quote amount must be positive")
	ErrInvalidPrice     = errors.New("price must be positive")
	ErrInvalidSide      = errors.New("invalid trade side")
	ErrCreationInFlight = errors.New("an order on this side is already being created")
	ErrOrderNotActive   = errors.New("order is not active")
	ErrOrderNotFilled   = errors.New("order has no fills")
	ErrOrderFilled      = errors.New("order already has fills")
)
