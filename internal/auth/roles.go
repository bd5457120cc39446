package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-queue/internal/domain"
	apperrors "github.com/spec-kit/agency-queue/pkg/util"
)

// Capability names a permission a route requires. Roles map to capability
// sets in the domain package, so routes never hard-code role lists.
type Capability func(domain.Capabilities) bool

// CanCallNext allows pulling the next ticket to a counter.
func CanCallNext(caps domain.Capabilities) bool { return caps.CanCallNext }

// CanServe allows start, complete and no-show operations.
func CanServe(caps domain.Capabilities) bool { return caps.CanServe }

// CanCancel allows cancelling tickets and appointments on behalf of clients.
func CanCancel(caps domain.Capabilities) bool { return caps.CanCancel }

// CanTransfer allows moving a ticket to another service queue.
func CanTransfer(caps domain.Capabilities) bool { return caps.CanTransfer }

// CanViewStats allows reading agency statistics.
func CanViewStats(caps domain.Capabilities) bool { return caps.CanViewStats }

// RequireCapability ensures the staff principal holds the capability.
func RequireCapability(capability Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Staff == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !capability(principal.Capabilities) {
			return apperrors.NewForbidden("insufficient permissions")
		}
		return c.Next()
	}
}

// RequireStaff ensures the caller is an authenticated staff member.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
