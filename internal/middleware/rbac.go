package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/salon-pos-api/internal/models"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
	"github.com/noah-isme/salon-pos-api/pkg/response"
)

// tierRank orders permission tiers; a higher tier implies the lower ones.
var tierRank = map[models.PermissionTier]int{
	models.TierTechnician:   1,
	models.TierReceptionist: 2,
	models.TierAdmin:        3,
}

// RequireTier allows requests whose claims carry at least the given tier.
func RequireTier(minimum models.PermissionTier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if tierRank[claims.Tier] < tierRank[minimum] {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRoles allows requests whose claims carry at least one of the given
// roles, regardless of tier.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if !claims.Roles.HasAny(roles...) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
