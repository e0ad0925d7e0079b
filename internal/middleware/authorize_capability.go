package middleware

import (
	"harbor-backend/internal/pkg/constants"
	"harbor-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthorizeCapability gates a route on the caller's resolved capabilities.
// Unconfigured capability is a server misconfiguration, not a client error.
func AuthorizeCapability(capability string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := GetIdentity(c)
		if id.Address == "" {
			return response.Unauthorized(c, "Unauthorized")
		}
		if _, ok := constants.CapabilityRoles[capability]; !ok {
			return response.Error(c, "Capability configuration error", fiber.StatusInternalServerError, nil)
		}
		if !id.Can(capability) {
			return response.Error(c, "Wallet is not permitted to perform this action", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
