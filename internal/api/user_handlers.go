package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carevault/internal/auth"
	"carevault/internal/user"
)

const loginTokenTTL = 7 * 24 * time.Hour

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token       string `json:"token"`
	ClinicianID uint   `json:"clinicianId"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}

// POST /api/v1/auth/login
func (s *Server) loginHandler(c *gin.Context) {
	var count int64
	if err := s.db.Model(&user.Clinician{}).Count(&count).Error; err != nil {
		errorJSON(c, http.StatusInternalServerError, "DB error")
		return
	}
	if count == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Initial setup required", "need_setup": true}})
		return
	}
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}
	var u user.Clinician
	if err := s.db.Where("username = ?", req.Username).First(&u).Error; err != nil {
		errorJSON(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err := user.CheckPassword(u.PasswordHash, req.Password); err != nil {
		errorJSON(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	token, err := auth.GenerateJWT(s.cfg.Server.JWTSecret, u.ID, u.Username, string(u.Role), loginTokenTTL)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	_ = auth.SetSession(c.Request.Context(), s.rdb, u.ID, token, loginTokenTTL)
	c.JSON(http.StatusOK, LoginResponse{
		Token:       token,
		ClinicianID: u.ID,
		Username:    u.Username,
		Role:        string(u.Role),
	})
}

// POST /api/v1/auth/logout
func (s *Server) logoutHandler(c *gin.Context) {
	id := actorID(c)
	if id == 0 {
		errorJSON(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	_ = auth.DeleteSession(c.Request.Context(), s.rdb, id)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GET /api/v1/auth/me
func (s *Server) meHandler(c *gin.Context) {
	var u user.Clinician
	if err := s.db.First(&u, actorID(c)).Error; err != nil {
		errorJSON(c, http.StatusInternalServerError, "Account not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        u.ID,
		"username":  u.Username,
		"role":      u.Role,
		"createdAt": u.CreatedAt,
	})
}
