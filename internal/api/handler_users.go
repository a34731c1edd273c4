package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartfiller-backend/internal/auth"
	"smartfiller-backend/internal/authz"
	"smartfiller-backend/internal/model"
	"smartfiller-backend/internal/store"
)

type createUserRequest struct {
	Name     string     `json:"name" binding:"required"`
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"required,min=8"`
	Role     model.Role `json:"role" binding:"required"`
}

// CreateUser handles POST /api/users. Company admins only, and only the
// controller and viewer tiers may be created at runtime.
func (h *Handler) CreateUser(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	if !authz.CanManageUsers(claims.CompanyRole) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Only admins can create users."})
		return
	}

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		serverError(c, err, "Server error creating user")
		return
	}

	user, err := h.store.CreateUser(c.Request.Context(), claims.CompanyID, req.Name, req.Email, hash, req.Role)
	switch {
	case errors.Is(err, store.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid role. Only controller or viewer allowed."})
		return
	case errors.Is(err, store.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"message": "User with this email already exists in the company."})
		return
	case err != nil:
		serverError(c, err, "Server error creating user")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created", "user": toUserResponse(user)})
}

// ListUsers handles GET /api/users, admin-only, ordered admin then
// controller then viewer, ties broken by creation time.
func (h *Handler) ListUsers(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	if !authz.CanManageUsers(claims.CompanyRole) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Only admins can view users."})
		return
	}

	users, err := h.store.ListCompanyUsers(c.Request.Context(), claims.CompanyID)
	if err != nil {
		serverError(c, err, "Server error fetching users")
		return
	}

	responses := make([]userResponse, 0, len(users))
	for i := range users {
		responses = append(responses, toUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": responses})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

// ChangePassword handles PUT /api/users/change-password.
func (h *Handler) ChangePassword(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing current or new password"})
		return
	}

	err := auth.ChangePassword(c.Request.Context(), h.store, h.hasher, claims.UserID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Current password is incorrect"})
		return
	}
	if err != nil {
		serverError(c, err, "Error changing password")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}
