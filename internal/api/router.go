package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"smartfiller-backend/config"
	"smartfiller-backend/internal/auth"
	"smartfiller-backend/internal/mw"
	"smartfiller-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, notifier Notifier, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	handler := NewHandler(s, tokens, hasher, notifier, webpushOptions, cfg.Uploads.Dir)

	// Credential endpoints are the brute-forceable surface.
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.Use(rateLimiter)
		{
			authGroup.POST("/register", handler.Register)
			authGroup.POST("/login", handler.Login)
		}

		// The VAPID key is the only identity-free GET; everything else
		// sits behind token verification.
		api.GET("/vapid_public_key", caching, handler.GetVAPIDPublicKey)

		authed := api.Group("")
		authed.Use(mw.Auth(tokens))
		{
			authed.GET("/auth/me", handler.Me)

			authed.POST("/machines", handler.CreateMachine)
			authed.GET("/machines", handler.ListMachines)
			authed.GET("/machines/:id", handler.GetMachineDetail)
			authed.PUT("/machines/:id/status", handler.UpdateMachineStatus)
			authed.POST("/machines/:id/run", handler.LogRun)
			authed.POST("/machines/:id/assign-user", handler.AssignUser)
			authed.POST("/machines/:id/upload", handler.UploadFile)
			authed.GET("/machines/:id/files", handler.ListFiles)
			authed.DELETE("/machines/:id/files/:fileId", handler.DeleteFile)
			authed.GET("/machines/:id/stats/runs", handler.GetRunStats)

			authed.POST("/users", handler.CreateUser)
			authed.GET("/users", handler.ListUsers)
			authed.PUT("/users/change-password", handler.ChangePassword)

			authed.GET("/subscriptions", handler.GetSubscription)
			authed.PUT("/subscriptions", handler.PutSubscription)
			authed.DELETE("/subscriptions", handler.DeleteSubscription)
		}
	}

	return r
}
