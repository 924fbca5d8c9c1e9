package appointments

import "errors"

var (
	ErrInvalidInput    = errors.New("appointments: invalid input")
	ErrSlotUnavailable = errors.New("appointments: slot unavailable")
	ErrNotFound        = errors.New("appointments: not found")
	ErrForbidden       = errors.New("appointments: not a party to this appointment")
	ErrStorage         = errors.New("appointments: storage failure")
)
