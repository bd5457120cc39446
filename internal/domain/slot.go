package domain

import (
	"fmt"
	"time"
)

// Slot is a finite-capacity time window within an agency's service hours.
type Slot struct {
	AgencyID    string
	Date        time.Time
	Time        string
	Capacity    int
	BookedCount int
}

// Available reports whether the slot can accept another booking.
func (s Slot) Available() bool {
	return s.BookedCount < s.Capacity
}

// ServiceWindow is a half-open [Start, End) span of bookable time within a
// day, in HH:MM.
type ServiceWindow struct {
	Start string
	End   string
}

// DefaultServiceWindows are used when an agency has no configured hours:
// morning and afternoon blocks yielding fourteen 30-minute slots.
var DefaultServiceWindows = []ServiceWindow{
	{Start: "08:00", End: "12:00"},
	{Start: "14:00", End: "17:00"},
}

// SlotDuration is the fixed granularity of appointment slots.
const SlotDuration = 30 * time.Minute

// DefaultSlotCapacity is the booking capacity of a generated slot.
const DefaultSlotCapacity = 1

// SlotTimes expands service windows into the ordered list of slot start
// times. Windows are half-open, so a window ending at 12:00 produces its
// last slot at 11:30.
func SlotTimes(windows []ServiceWindow) []string {
	var times []string
	for _, window := range windows {
		start, err := parseClock(window.Start)
		if err != nil {
			continue
		}
		end, err := parseClock(window.End)
		if err != nil {
			continue
		}
		for t := start; t < end; t += SlotDuration {
			times = append(times, formatClock(t))
		}
	}
	return times
}

func parseClock(value string) (time.Duration, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", value, err)
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
