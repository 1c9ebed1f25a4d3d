package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// Capability names checked by route guards.
const (
	CapabilityManagePolicies    = "manage_policies"
	CapabilityManageDelegations = "manage_delegations"
)

// RequireCapability returns middleware that checks whether any of the
// caller's roles grants the named capability. Capabilities are static per
// role; there is no per-resource permission model.
func RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, r := range GetRoles(c.Request.Context()) {
			if hasCapability(domain.ApproverRole(r), capability) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code":    "PERMISSION_DENIED",
			"message": "role does not grant " + capability,
		})
	}
}

func hasCapability(role domain.ApproverRole, capability string) bool {
	caps := role.Capabilities()
	switch capability {
	case CapabilityManagePolicies:
		return caps.ManagePolicies
	case CapabilityManageDelegations:
		return caps.ManageDelegations
	}
	return false
}
