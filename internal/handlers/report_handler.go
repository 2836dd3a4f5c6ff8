package handlers

import (
	"log/slog"
	"strconv"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	reportService *services.ReportService
	feedService   *services.FeedService
}

func NewReportHandler(reportService *services.ReportService, feedService *services.FeedService) *ReportHandler {
	return &ReportHandler{reportService: reportService, feedService: feedService}
}

func (h *ReportHandler) Create(c *fiber.Ctx) error {
	userID, err := identity.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ctx := c.UserContext()
	report, err := h.reportService.Create(ctx, userID, &req)
	if err != nil {
		return respondError(c, err)
	}
	h.invalidateFeed(c)

	return c.Status(fiber.StatusCreated).JSON(services.AnnotatedReport{Report: *report, UserVote: models.Upvote})
}

func (h *ReportHandler) Get(c *fiber.Ctx) error {
	report, err := h.feedService.Report(c.UserContext(), c.Params("id"), identity.OptionalUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// Feed serves the global feed, ranked by score. ?page defaults to 1.
func (h *ReportHandler) Feed(c *fiber.Ctx) error {
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n > services.MaxFeedPage {
			return badRequest(c, "Invalid page number")
		}
		page = max(n, 1)
	}

	reports, err := h.feedService.GlobalFeed(c.UserContext(), page, identity.OptionalUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"reports":   reports,
		"page":      page,
		"page_size": services.FeedPageSize,
	})
}

func (h *ReportHandler) Mine(c *fiber.Ctx) error {
	userID, err := identity.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	reports, err := h.feedService.PersonalFeed(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"reports": reports})
}

func (h *ReportHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	report, err := h.reportService.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, err)
	}
	h.invalidateFeed(c)

	return c.JSON(report)
}

func (h *ReportHandler) invalidateFeed(c *fiber.Ctx) {
	if err := h.feedService.Invalidate(c.UserContext()); err != nil {
		slog.Warn("feed cache invalidation failed", "request_id", requestID(c), "error", err)
	}
}
