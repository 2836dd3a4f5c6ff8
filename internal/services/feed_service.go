package services

import (
	"context"
	"log/slog"
	"math"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/google/uuid"
)

const FeedPageSize = 10

// MaxFeedPage is the last page whose offset fits in an int.
const MaxFeedPage = math.MaxInt/FeedPageSize + 1

// AnnotatedReport is a report plus the viewer's current vote on it.
type AnnotatedReport struct {
	models.Report
	UserVote models.VoteValue `json:"userVote"`
}

// FeedCache is satisfied by *cache.FeedCache.
type FeedCache interface {
	Generation(ctx context.Context) (int64, error)
	GetPage(ctx context.Context, page int) ([]models.Report, bool, error)
	SetPage(ctx context.Context, gen int64, page int, reports []models.Report) error
	Invalidate(ctx context.Context) error
}

type FeedService struct {
	store store.Store
	cache FeedCache
}

// NewFeedService accepts a nil cache.
func NewFeedService(s store.Store, cache FeedCache) *FeedService {
	return &FeedService{store: s, cache: cache}
}

// AnnotateWithVotes pairs every report with viewerID's vote, preserving the
// input order. A nil viewer gets NoVote everywhere; otherwise all votes are
// fetched with a single batch lookup.
func (s *FeedService) AnnotateWithVotes(ctx context.Context, reports []models.Report, viewerID *uuid.UUID) ([]AnnotatedReport, error) {
	out := make([]AnnotatedReport, len(reports))
	for i := range reports {
		out[i] = AnnotatedReport{Report: reports[i], UserVote: models.NoVote}
	}
	if viewerID == nil || len(reports) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, len(reports))
	for i := range reports {
		ids[i] = reports[i].ID
	}
	votes, err := s.store.Votes().FindBatch(ctx, *viewerID, ids)
	if err != nil {
		return nil, fromStore(err, ErrReportNotFound)
	}

	for i := range out {
		if v, ok := votes[out[i].ID]; ok {
			out[i].UserVote = v
		}
	}
	return out, nil
}

// GlobalFeed returns one page of all reports ranked by score, newest first
// among equal scores. Pages start at 1.
func (s *FeedService) GlobalFeed(ctx context.Context, page int, viewerID *uuid.UUID) ([]AnnotatedReport, error) {
	if page < 1 {
		page = 1
	}
	if page > MaxFeedPage {
		return nil, ErrInvalidPage
	}

	reports, err := s.loadPage(ctx, page)
	if err != nil {
		return nil, err
	}
	return s.AnnotateWithVotes(ctx, reports, viewerID)
}

func (s *FeedService) loadPage(ctx context.Context, page int) ([]models.Report, error) {
	if s.cache == nil {
		return s.queryPage(ctx, page)
	}

	if reports, hit, err := s.cache.GetPage(ctx, page); err != nil {
		slog.Warn("feed cache read failed", "page", page, "error", err)
	} else if hit {
		return reports, nil
	}

	gen, genErr := s.cache.Generation(ctx)
	reports, err := s.queryPage(ctx, page)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		slog.Warn("feed cache generation read failed", "error", genErr)
		return reports, nil
	}
	if err := s.cache.SetPage(ctx, gen, page, reports); err != nil {
		slog.Warn("feed cache write failed", "page", page, "error", err)
	}
	return reports, nil
}

func (s *FeedService) queryPage(ctx context.Context, page int) ([]models.Report, error) {
	reports, err := s.store.Reports().ListGlobal(ctx, (page-1)*FeedPageSize, FeedPageSize)
	if err != nil {
		return nil, fromStore(err, ErrReportNotFound)
	}
	return reports, nil
}

// PersonalFeed returns the viewer's own reports, newest first.
func (s *FeedService) PersonalFeed(ctx context.Context, viewerID uuid.UUID) ([]AnnotatedReport, error) {
	reports, err := s.store.Reports().ListByOwner(ctx, viewerID)
	if err != nil {
		return nil, fromStore(err, ErrReportNotFound)
	}
	return s.AnnotateWithVotes(ctx, reports, &viewerID)
}

func (s *FeedService) Report(ctx context.Context, rawID string, viewerID *uuid.UUID) (*AnnotatedReport, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrInvalidReportID
	}
	report, err := s.store.Reports().Get(ctx, id)
	if err != nil {
		return nil, fromStore(err, ErrReportNotFound)
	}
	annotated, err := s.AnnotateWithVotes(ctx, []models.Report{*report}, viewerID)
	if err != nil {
		return nil, err
	}
	return &annotated[0], nil
}

// Invalidate drops cached feed pages after a score or report change.
func (s *FeedService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}
