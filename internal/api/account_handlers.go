// internal/api/account_handlers.go
//
// Admin management of clinician accounts. Patient data never lives
// here; accounts are staff-only.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carevault/internal/user"
)

// GET /api/v1/accounts  [admin]
func (s *Server) listAccountsHandler(c *gin.Context) {
	var accounts []user.Clinician
	if err := s.db.Find(&accounts).Error; err != nil {
		errorJSON(c, http.StatusInternalServerError, "List error")
		return
	}
	result := make([]gin.H, 0, len(accounts))
	for _, u := range accounts {
		result = append(result, gin.H{
			"id":        u.ID,
			"username":  u.Username,
			"role":      u.Role,
			"createdAt": u.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, result)
}

type CreateAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// POST /api/v1/accounts  [admin]
func (s *Server) createAccountHandler(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		errorJSON(c, http.StatusBadRequest, "Missing username or password")
		return
	}
	role := user.RoleClinician
	if req.Role == string(user.RoleAdmin) {
		role = user.RoleAdmin
	}
	pwHash, err := user.HashPassword(req.Password)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Password hash failed")
		return
	}
	account := user.Clinician{
		Username:     req.Username,
		PasswordHash: pwHash,
		Role:         role,
	}
	if err := s.db.Create(&account).Error; err != nil {
		errorJSON(c, http.StatusInternalServerError, "Create error")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        account.ID,
		"username":  account.Username,
		"role":      account.Role,
		"createdAt": account.CreatedAt,
	})
}

type UpdateAccountRequest struct {
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
}

// PUT /api/v1/accounts/:id  [admin]
func (s *Server) updateAccountHandler(c *gin.Context) {
	id := c.Param("id")
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request")
		return
	}
	var account user.Clinician
	if err := s.db.First(&account, id).Error; err != nil {
		errorJSON(c, http.StatusNotFound, "Account not found")
		return
	}
	if req.Password != "" {
		pwHash, err := user.HashPassword(req.Password)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, "Password hash failed")
			return
		}
		account.PasswordHash = pwHash
	}
	if req.Role == string(user.RoleAdmin) || req.Role == string(user.RoleClinician) {
		account.Role = user.Role(req.Role)
	}
	if err := s.db.Save(&account).Error; err != nil {
		errorJSON(c, http.StatusInternalServerError, "Update error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account updated"})
}

// DELETE /api/v1/accounts/:id  [admin]
func (s *Server) deleteAccountHandler(c *gin.Context) {
	id := c.Param("id")
	if err := s.db.Delete(&user.Clinician{}, id).Error; err != nil {
		errorJSON(c, http.StatusInternalServerError, "Delete error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}
