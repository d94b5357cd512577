package timecontrol

import (
	"errors"
	"fmt"
)

// ErrInvalidPrecondition is wrapped by every capture the state machine refuses.
var ErrInvalidPrecondition = errors.New("capture not allowed")

// Capture precondition errors
var (
	ErrHolidayEntry   = fmt.Errorf("%w: entry on a holiday", ErrInvalidPrecondition)
	ErrAlreadyEntered = fmt.Errorf("%w: entry already captured today", ErrInvalidPrecondition)
	ErrNoEntry        = fmt.Errorf("%w: exit without an entry", ErrInvalidPrecondition)
	ErrAlreadyExited  = fmt.Errorf("%w: exit already captured today", ErrInvalidPrecondition)
)
