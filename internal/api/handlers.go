package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carevault/internal/auth"
)

// GET /api/v1/health
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "carevault",
	})
}

func errorJSON(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": gin.H{"message": message}})
}

// actorID returns the authenticated clinician's ID, or 0 when the
// route was mounted without auth (tests).
func actorID(c *gin.Context) uint {
	if v, ok := c.Get(auth.CtxClinicianID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
