package domain

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"time"
)

// AppointmentStatus enumerates lifecycle states for appointments.
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCheckedIn AppointmentStatus = "checked_in"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// Appointment is a pre-booked reservation for a service slot.
type Appointment struct {
	ID               string
	AgencyID         string
	ServiceCode      string
	Date             time.Time
	TimeSlot         string
	Status           AppointmentStatus
	ConfirmationCode string
	ClientName       string
	ClientPhone      *string
	CancelReason     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ConfirmedAt      *time.Time
	CheckedInAt      *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
}

// IsTerminal reports whether the appointment accepts no further changes.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

const confirmationCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var confirmationCodePattern = regexp.MustCompile(`^RDV-[A-Z0-9]{6}$`)

// NewConfirmationCode generates a client-facing confirmation code in the
// form RDV-XXXXXX.
func NewConfirmationCode() string {
	buf := make([]byte, 6)
	max := big.NewInt(int64(len(confirmationCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the process is in a bad state;
			// fall back to a fixed character rather than panic.
			buf[i] = confirmationCharset[0]
			continue
		}
		buf[i] = confirmationCharset[n.Int64()]
	}
	return "RDV-" + string(buf)
}

// ValidConfirmationCode reports whether code matches the RDV-XXXXXX format.
func ValidConfirmationCode(code string) bool {
	return confirmationCodePattern.MatchString(code)
}
