package domain

import "time"

// StaffRole enumerates agency operator roles.
type StaffRole string

const (
	StaffRoleAgent      StaffRole = "AGENT"
	StaffRoleSupervisor StaffRole = "SUPERVISOR"
	StaffRoleAdmin      StaffRole = "ADMIN"
)

// StaffMember models an agency agent, supervisor or administrator.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	AgencyID     *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Capabilities is the closed permission table for a role. Handlers check
// these flags instead of comparing role strings inline.
type Capabilities struct {
	CanCallNext    bool
	CanServe       bool
	CanCancel      bool
	CanTransfer    bool
	CanManageSlots bool
	CanViewStats   bool
}

var roleCapabilities = map[StaffRole]Capabilities{
	StaffRoleAgent: {
		CanCallNext:  true,
		CanServe:     true,
		CanCancel:    true,
		CanTransfer:  true,
		CanViewStats: true,
	},
	StaffRoleSupervisor: {
		CanCallNext:    true,
		CanServe:       true,
		CanCancel:      true,
		CanTransfer:    true,
		CanManageSlots: true,
		CanViewStats:   true,
	},
	StaffRoleAdmin: {
		CanCallNext:    true,
		CanServe:       true,
		CanCancel:      true,
		CanTransfer:    true,
		CanManageSlots: true,
		CanViewStats:   true,
	},
}

// CapabilitiesFor returns the capability set for a role. Unknown roles get
// the zero set.
func CapabilitiesFor(role StaffRole) Capabilities {
	return roleCapabilities[role]
}
