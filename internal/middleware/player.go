package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// NetworkIDKey is the Locals key holding the id a client asked for.
const NetworkIDKey = "networkID"

// RequestedNetworkID lets a client pick its relay id through the
// X-Network-ID header or the networkId query. Without either the relay
// assigns one. A requested id must be a UUID.
func RequestedNetworkID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals(NetworkIDKey) != nil {
			return c.Next()
		}

		networkID := c.Get("X-Network-ID")
		if networkID == "" {
			networkID = c.Query("networkId")
		}
		if networkID == "" {
			c.Locals(NetworkIDKey, "")
			return c.Next()
		}

		if _, err := uuid.Parse(networkID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "network id must be a UUID",
			})
		}
		c.Locals(NetworkIDKey, networkID)
		return c.Next()
	}
}
