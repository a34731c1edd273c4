package api

import (
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"smartfiller-backend/internal/auth"
	"smartfiller-backend/internal/authz"
	"smartfiller-backend/internal/mw"
	"smartfiller-backend/internal/notification"
	"smartfiller-backend/internal/store"
)

// Notifier dispatches machine status changes to the push worker pool.
type Notifier interface {
	Dispatch(change notification.StatusChange)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	guard      *authz.Guard
	tokens     *auth.Tokens
	hasher     *auth.Hasher
	notifier   Notifier
	webpush    *webpush.Options
	uploadsDir string
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, tokens *auth.Tokens, hasher *auth.Hasher, notifier Notifier, webpushOptions *webpush.Options, uploadsDir string) *Handler {
	return &Handler{
		store:      s,
		guard:      authz.NewGuard(s),
		tokens:     tokens,
		hasher:     hasher,
		notifier:   notifier,
		webpush:    webpushOptions,
		uploadsDir: uploadsDir,
	}
}

// claims returns the verified token claims or aborts with 401. The auth
// middleware always sets them on protected routes, so a miss means a
// wiring bug rather than a client error.
func (h *Handler) claims(c *gin.Context) (*auth.Claims, bool) {
	claims, ok := mw.ClaimsFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return nil, false
	}
	return claims, true
}

// serverError logs the full failure for operators and returns a generic
// message to the caller.
func serverError(c *gin.Context, err error, message string) {
	log.Printf("%s: %v", message, err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": message})
}
