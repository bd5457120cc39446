package domain

import "time"

// Counter is a staffed service point that claims and serves tickets.
type Counter struct {
	ID              string
	AgencyID        string
	Label           string
	AllowedServices []string
	ActiveTicketID  *string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllowsService reports whether the counter may serve the given service.
func (c *Counter) AllowsService(serviceCode string) bool {
	for _, code := range c.AllowedServices {
		if code == serviceCode {
			return true
		}
	}
	return false
}
