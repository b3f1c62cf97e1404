package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/salon-pos-api/internal/models"
	"github.com/noah-isme/salon-pos-api/internal/repository"
)

// Audit records an activity row after successful requests on sensitive
// routes, such as report generation. Workflow transitions write their own
// activity entries in the service layer; this covers plain reads and
// administrative actions.
func Audit(repo *repository.ActivityRepository, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		actor := models.SystemActor
		storeID := ""
		if claimsValue, ok := c.Get(ContextUserKey); ok {
			claims := claimsValue.(*models.JWTClaims)
			actor = claims.EmployeeID
			storeID = claims.StoreID
		}

		details, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		_ = repo.Insert(c.Request.Context(), &models.ActivityLog{
			StoreID:  storeID,
			Actor:    actor,
			Action:   action,
			Resource: resource,
			Details:  details,
		})
	}
}
