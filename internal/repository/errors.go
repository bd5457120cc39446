package repository

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional update lost the race:
	// the row's version or status changed since it was read.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrSlotFull is returned when a slot's booked count already equals
	// its capacity.
	ErrSlotFull = errors.New("slot is fully booked")
	// ErrCounterBusy is returned when a claim finds the counter already
	// holding an active ticket.
	ErrCounterBusy = errors.New("counter already has an active ticket")
	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("duplicate record")
)
