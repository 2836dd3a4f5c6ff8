package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// Pinger is anything whose reachability is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	db    Pinger
	store Pinger
	cache Pinger
}

// NewHealthHandler accepts a nil cache when Redis is not configured.
func NewHealthHandler(db, store, cache Pinger) *HealthHandler {
	return &HealthHandler{db: db, store: store, cache: cache}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	resp := dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        pingStatus(ctx, h.db),
		Store:     pingStatus(ctx, h.store),
		Cache:     pingStatus(ctx, h.cache),
	}

	status := fiber.StatusOK
	if resp.DB != "ok" || resp.Store != "ok" {
		resp.Status = "degraded"
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(resp)
}

func pingStatus(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "ok"
}
