package handlers

import (
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type VoteHandler struct {
	votingService *services.VotingService
	feedService   *services.FeedService
}

func NewVoteHandler(votingService *services.VotingService, feedService *services.FeedService) *VoteHandler {
	return &VoteHandler{votingService: votingService, feedService: feedService}
}

// Cast handles POST /api/reports/:id/vote with body {"value": -1|0|1} and
// responds with {"score", "userVote"}.
func (h *VoteHandler) Cast(c *fiber.Ctx) error {
	userID, err := identity.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Value == nil {
		return badRequest(c, "Invalid vote value")
	}

	ctx := c.UserContext()
	result, err := h.votingService.CastVote(ctx, c.Params("id"), userID, *req.Value)
	if err != nil {
		return respondError(c, err)
	}

	if result.Changed {
		if err := h.feedService.Invalidate(ctx); err != nil {
			slog.Warn("feed cache invalidation failed",
				"request_id", requestID(c),
				"report_id", c.Params("id"),
				"error", err,
			)
		}
	}

	return c.JSON(result)
}
