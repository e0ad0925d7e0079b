package middleware

import (
	"harbor-backend/internal/identity"
	"harbor-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const walletHeader = "X-Wallet-Address"
const identityLocal = "identity"

// WalletAuth resolves the caller's wallet address from the request header
// into an identity and attaches it to the request. Requests without a wallet
// are rejected before any handler runs.
func WalletAuth(ids *identity.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		wallet := c.Get(walletHeader)
		if wallet == "" {
			return response.Unauthorized(c, "Missing "+walletHeader+" header")
		}
		c.Locals(identityLocal, ids.Resolve(wallet))
		return c.Next()
	}
}

// GetIdentity returns the resolved caller identity, or a zero identity when
// the auth middleware did not run.
func GetIdentity(c *fiber.Ctx) identity.Identity {
	if id, ok := c.Locals(identityLocal).(identity.Identity); ok {
		return id
	}
	return identity.Identity{}
}
