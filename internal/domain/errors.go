package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPositionClosed   = errors.New("position already closed")
	ErrAlreadyOpen      = errors.New("open position already exists for market")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrUnknownStrategy  = errors.New("unknown strategy or group")
	ErrLiveDisabled     = errors.New("live trading is not enabled")
	ErrLockHeld         = errors.New("lock already held")
)
