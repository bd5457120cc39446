package domain

import "time"

// Agency is a physical branch of the utility where clients queue.
type Agency struct {
	ID        string
	Code      string
	Name      string
	Timezone  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves the agency's timezone, falling back to UTC when the
// stored name is empty or unknown.
func (a *Agency) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalDay truncates a timestamp to the agency-local calendar day. Ticket
// sequences reset at agency-local midnight, so "day" is always computed
// through this.
func (a *Agency) LocalDay(at time.Time) time.Time {
	local := at.In(a.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// AgencyHours is a configured service window for an agency. Agencies
// without any rows fall back to DefaultServiceWindows.
type AgencyHours struct {
	ID        string
	AgencyID  string
	StartTime string
	EndTime   string
	Capacity  int
}
