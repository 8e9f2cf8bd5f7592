package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"carevault/internal/user"
)

type SetupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /api/v1/setup creates the first admin account. Refused once
// any clinician account exists.
func (s *Server) setupHandler(c *gin.Context) {
	var count int64
	if err := s.db.Model(&user.Clinician{}).Count(&count).Error; err != nil {
		errorJSON(c, http.StatusInternalServerError, "DB error")
		return
	}
	if count != 0 {
		errorJSON(c, http.StatusForbidden, "Setup not allowed; accounts already exist")
		return
	}
	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.Username == "" || req.Password == "" {
		errorJSON(c, http.StatusBadRequest, "Username and password required")
		return
	}
	pwHash, err := user.HashPassword(req.Password)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Password hash failed")
		return
	}
	u := user.Clinician{
		Username:     req.Username,
		PasswordHash: pwHash,
		Role:         user.RoleAdmin,
	}
	if err := s.db.Create(&u).Error; err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			errorJSON(c, http.StatusBadRequest, "Username already exists")
			return
		}
		errorJSON(c, http.StatusInternalServerError, "DB error")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":             u.ID,
		"username":       u.Username,
		"role":           u.Role,
		"createdAt":      u.CreatedAt,
		"setup_complete": true,
	})
}
