package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrPaymentPending     = fmt.Errorf("%w: payment is still pending", ErrInvalidTransition)
	ErrNotFound           = errors.New("order not found")
	ErrConnectivity       = errors.New("connectivity failure")
	ErrPermissionDenied   = errors.New("notification permission denied")
	ErrAudioUnavailable   = errors.New("audio unavailable")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrConflict           = errors.New("data conflicts with existing data")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
