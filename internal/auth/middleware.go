package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"carevault/internal/user"
)

// Context keys set by Middleware.
const (
	CtxClinicianID = "clinicianId"
	CtxUsername    = "username"
	CtxRole        = "role"
)

// Middleware validates the bearer token and the redis session, then
// attaches clinician identity to the gin context. The session TTL
// slides on every authenticated request.
func Middleware(jwtSecret string, rdb *redis.Client, requireAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Missing or invalid Authorization header"}})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := ParseJWT(jwtSecret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Invalid or expired token"}})
			return
		}
		sessionToken, err := GetSession(c.Request.Context(), rdb, claims.ClinicianID)
		if err != nil || sessionToken != tokenStr {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Session expired or invalid"}})
			return
		}
		_ = SetSession(c.Request.Context(), rdb, claims.ClinicianID, tokenStr, SessionTTL)

		c.Set(CtxClinicianID, claims.ClinicianID)
		c.Set(CtxUsername, claims.Username)
		c.Set(CtxRole, claims.Role)

		if requireAdmin && claims.Role != string(user.RoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Admin only"}})
			return
		}
		c.Next()
	}
}
