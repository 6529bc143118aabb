package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	HeaderOrgID = "X-Org-ID"
	QueryOrgID  = "org_id"

	localsOrgID = "ORG_ID"
	maxOrgIDLen = 191
)

// OrgScope resolves the tenant of a request from the X-Org-ID header or the
// org_id query parameter and rejects requests that carry neither.
func OrgScope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		orgID := strings.TrimSpace(c.Get(HeaderOrgID))
		if orgID == "" {
			orgID = strings.TrimSpace(c.Query(QueryOrgID))
		}
		if orgID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"ok":      false,
				"error":   "missing_org",
				"message": "X-Org-ID header or org_id query parameter is required",
			})
		}
		if len(orgID) > maxOrgIDLen {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"ok":      false,
				"error":   "invalid_org",
				"message": "organization id is too long",
			})
		}
		c.Locals(localsOrgID, orgID)
		return c.Next()
	}
}

// OrgID returns the organization resolved by OrgScope, or "".
func OrgID(c *fiber.Ctx) string {
	if v, ok := c.Locals(localsOrgID).(string); ok {
		return v
	}
	return ""
}
