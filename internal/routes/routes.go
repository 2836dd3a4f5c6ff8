package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	roles middleware.RoleChecker,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	reportHandler *handlers.ReportHandler,
	voteHandler *handlers.VoteHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", middleware.JWTProtected(cfg), authHandler.Logout)

	// Reports. The static paths go before /:id.
	reports := api.Group("/reports")
	reports.Get("/feed", middleware.OptionalJWT(cfg), reportHandler.Feed)
	reports.Get("/mine", middleware.JWTProtected(cfg), reportHandler.Mine)
	reports.Post("/", middleware.JWTProtected(cfg), reportHandler.Create)
	reports.Get("/:id", middleware.OptionalJWT(cfg), reportHandler.Get)
	reports.Post("/:id/vote", middleware.JWTProtected(cfg), voteHandler.Cast)

	// Admin accepts either X-Admin-Token or a bearer token of an admin.
	admin := api.Group("/admin", middleware.OptionalJWT(cfg), middleware.AdminRequired(roles, cfg))
	admin.Put("/reports/:id/status", reportHandler.UpdateStatus)
}
