package domain

import "errors"

var (
	ErrInvalidBarrier    = errors.New("invalid triple barrier")
	ErrAlreadyTerminated = errors.New("order already terminated")
)
