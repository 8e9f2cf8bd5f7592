package api

import (
	"github.com/gin-gonic/gin"

	"carevault/internal/auth"
)

// SetupRouter builds the HTTP API. All memory and patient routes
// require a logged-in clinician; destructive patient-wide operations
// require the admin role.
func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	secret := s.cfg.Server.JWTSecret
	authed := auth.Middleware(secret, s.rdb, false)
	admin := auth.Middleware(secret, s.rdb, true)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.healthHandler)

		// Setup: only if no clinician accounts exist
		v1.POST("/setup", s.setupHandler)

		// Auth
		v1.POST("/auth/login", s.loginHandler)
		v1.POST("/auth/logout", authed, s.logoutHandler)
		v1.GET("/auth/me", authed, s.meHandler)

		// Memory lifecycle
		v1.POST("/memories", authed, s.ingestHandler)
		v1.POST("/memories/document", authed, s.ingestDocumentHandler)
		v1.POST("/memories/audio", authed, s.ingestAudioHandler)
		v1.POST("/memories/image", authed, s.ingestImageHandler)
		v1.PATCH("/memories/:id", authed, s.updateMemoryHandler)
		v1.DELETE("/memories/:id", authed, s.deleteMemoryHandler)

		// Patient views
		v1.GET("/patients/:id/memories", authed, s.listMemoriesHandler)
		v1.GET("/patients/:id/stats", authed, s.patientStatsHandler)
		v1.GET("/patients/:id/summary", authed, s.patientSummaryHandler)
		v1.GET("/patients/:id/suggestions", authed, s.patientSuggestionsHandler)
		v1.GET("/patients/:id/audit", admin, s.patientAuditHandler)

		// Admin operations
		v1.DELETE("/patients/:id", admin, s.purgePatientHandler)
		v1.POST("/patients/:id/decay", admin, s.decayHandler)

		// Admin: clinician accounts
		v1.GET("/accounts", admin, s.listAccountsHandler)
		v1.POST("/accounts", admin, s.createAccountHandler)
		v1.PUT("/accounts/:id", admin, s.updateAccountHandler)
		v1.DELETE("/accounts/:id", admin, s.deleteAccountHandler)

		// Retrieval and reasoning
		v1.POST("/search", authed, s.searchHandler)
		v1.POST("/search/context", authed, s.contextHandler)
		v1.POST("/reason", authed, s.reasonHandler)
	}
	return r
}
