package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "stmtrules/docs"
	"stmtrules/internal/handler"
	"stmtrules/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Profile  *handler.ProfileHandler
	Config   *handler.ConfigHandler
	Flag     *handler.FlagHandler
	Fallback *handler.FallbackHandler
	Plan     *handler.PlanHandler
	Health   *handler.HealthHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(h Handlers, allowedOrigins []string, logger *slog.Logger) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")

	// Bank profiles
	profiles := v1.Group("/profiles")
	profiles.GET("", h.Profile.List)
	profiles.POST("", h.Profile.Create)
	profiles.GET("/catalog", h.Profile.Catalog)
	profiles.POST("/validate", h.Profile.Validate)
	profiles.POST("/identify", h.Profile.Identify)
	profiles.POST("/import", h.Profile.Import)
	profiles.POST("/backup", h.Profile.Backup)
	profiles.POST("/reload", h.Profile.Reload)
	profiles.GET("/:id", h.Profile.Get)
	profiles.PUT("/:id", h.Profile.Update)
	profiles.DELETE("/:id", h.Profile.Delete)
	profiles.GET("/:id/export", h.Profile.Export)

	// Configuration manager
	cfg := v1.Group("/config")
	cfg.GET("/health", h.Config.Health)
	cfg.GET("/schema", h.Config.Schema)
	cfg.GET("/diagnostics", h.Config.Diagnostics)
	cfg.GET("/profiles/:id", h.Config.Details)
	cfg.GET("/active", h.Config.GetActive)
	cfg.PUT("/active", h.Config.SetActive)
	cfg.GET("/hot-reload", h.Config.GetHotReload)
	cfg.PATCH("/hot-reload", h.Config.UpdateHotReload)

	// Feature flags
	flags := v1.Group("/flags")
	flags.GET("", h.Flag.List)
	flags.POST("/evaluate", h.Flag.Enabled)
	flags.GET("/stats", h.Flag.Stats)
	flags.GET("/export", h.Flag.Export)
	flags.POST("/import", h.Flag.Import)
	flags.POST("/reset", h.Flag.Reset)
	flags.GET("/snapshots", h.Flag.ListSnapshots)
	flags.POST("/snapshots", h.Flag.SaveSnapshot)
	flags.POST("/snapshots/restore", h.Flag.RestoreSnapshot)
	flags.GET("/:name", h.Flag.Get)
	flags.PUT("/:name", h.Flag.Set)
	flags.PATCH("/:name", h.Flag.Update)
	flags.POST("/:name/enable", h.Flag.Enable)
	flags.POST("/:name/disable", h.Flag.Disable)
	flags.POST("/:name/evaluate", h.Flag.Evaluate)
	flags.POST("/:name/value", h.Flag.Value)

	// Fallback ladder
	fb := v1.Group("/fallback")
	fb.GET("", h.Fallback.Config)
	fb.GET("/strategies", h.Fallback.Strategies)
	fb.PATCH("/strategies/:name", h.Fallback.UpdateStrategy)
	fb.PATCH("/settings", h.Fallback.UpdateSettings)
	fb.POST("/select", h.Fallback.Select)
	fb.POST("/next", h.Fallback.Next)

	// Plans and parsing
	v1.POST("/plans", h.Plan.Plan)
	v1.POST("/plans/escalate", h.Plan.Escalate)
	v1.POST("/statements/parse", h.Plan.Parse)

	return r
}
