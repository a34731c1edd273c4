package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartfiller-backend/internal/auth"
	"smartfiller-backend/internal/model"
	"smartfiller-backend/internal/store"
)

type registerRequest struct {
	Name      string     `json:"name" binding:"required"`
	Email     string     `json:"email" binding:"required,email"`
	Password  string     `json:"password" binding:"required,min=8"`
	CompanyID int64      `json:"company_id" binding:"required"`
	Role      model.Role `json:"role" binding:"required"`
}

type userResponse struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	CompanyID int64      `json:"company_id"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CompanyID: u.CompanyID,
	}
}

// Register handles POST /api/auth/register. Self-registration is open,
// but only for the controller and viewer tiers; admin accounts come from
// the seeding path.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		serverError(c, err, "Server error during registration")
		return
	}

	user, err := h.store.CreateUser(c.Request.Context(), req.CompanyID, req.Name, req.Email, hash, req.Role)
	switch {
	case errors.Is(err, store.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid role. Only controller or viewer allowed."})
		return
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Unknown company."})
		return
	case errors.Is(err, store.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"message": "User with this email already exists in the company."})
		return
	case err != nil:
		serverError(c, err, "Server error during registration")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.CompanyID, user.Role)
	if err != nil {
		serverError(c, err, "Server error during registration")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": toUserResponse(user)})
}

type loginRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	CompanyID int64  `json:"company_id" binding:"required"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	user, err := auth.Authenticate(c.Request.Context(), h.store, h.hasher, req.Email, req.Password, req.CompanyID)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	}
	if err != nil {
		serverError(c, err, "Server error during login")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.CompanyID, user.Role)
	if err != nil {
		serverError(c, err, "Server error during login")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": toUserResponse(user)})
}

// Me handles GET /api/auth/me, returning the caller's profile with the
// company name joined. A deleted user holding a live token gets 404.
func (h *Handler) Me(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	profile, err := h.store.GetUserProfile(c.Request.Context(), claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err != nil {
		serverError(c, err, "Server error")
		return
	}

	c.JSON(http.StatusOK, profile)
}
