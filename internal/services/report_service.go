package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/google/uuid"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	maxAddressLength     = 500
	maxImages            = 5
)

type ReportService struct {
	store  store.Store
	filter *ContentFilter
}

func NewReportService(s store.Store, filter *ContentFilter) *ReportService {
	return &ReportService{store: s, filter: filter}
}

// Create stores a new report owned by ownerID. The report starts at score 1
// with the owner's own upvote recorded.
func (s *ReportService) Create(ctx context.Context, ownerID uuid.UUID, req *dto.CreateReportRequest) (*models.Report, error) {
	if ownerID == uuid.Nil {
		return nil, ErrMissingIdentity
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	address := strings.TrimSpace(req.Address)
	category := models.Category(strings.TrimSpace(req.Category))

	switch {
	case title == "":
		return nil, invalid("Title is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		return nil, invalid(fmt.Sprintf("Title must be at most %d characters", maxTitleLength))
	case description == "":
		return nil, invalid("Description is required")
	case utf8.RuneCountInString(description) > maxDescriptionLength:
		return nil, invalid(fmt.Sprintf("Description must be at most %d characters", maxDescriptionLength))
	case address == "":
		return nil, invalid("Address is required")
	case utf8.RuneCountInString(address) > maxAddressLength:
		return nil, invalid(fmt.Sprintf("Address must be at most %d characters", maxAddressLength))
	case !category.Valid():
		return nil, invalid("Invalid category")
	case req.Longitude == nil || req.Latitude == nil:
		return nil, invalid("Location is required")
	case *req.Longitude < -180 || *req.Longitude > 180:
		return nil, invalid("Longitude must be between -180 and 180")
	case *req.Latitude < -90 || *req.Latitude > 90:
		return nil, invalid("Latitude must be between -90 and 90")
	case len(req.Images) > maxImages:
		return nil, invalid(fmt.Sprintf("At most %d images are allowed", maxImages))
	}

	for _, img := range req.Images {
		if !validImageURL(img) {
			return nil, invalid("Images must be http(s) URLs")
		}
	}
	if err := s.filter.Check("Title", title); err != nil {
		return nil, err
	}
	if err := s.filter.Check("Description", description); err != nil {
		return nil, err
	}

	images := req.Images
	if images == nil {
		images = []string{}
	}
	report := &models.Report{
		ID:          uuid.New(),
		UserID:      ownerID,
		Title:       title,
		Description: description,
		Category:    category,
		Address:     address,
		Longitude:   *req.Longitude,
		Latitude:    *req.Latitude,
		Images:      images,
		Status:      models.StatusSubmitted,
	}
	if err := s.store.Reports().Create(ctx, report); err != nil {
		return nil, fromStore(err, ErrReportNotFound)
	}
	return report, nil
}

func (s *ReportService) UpdateStatus(ctx context.Context, rawID string, status string) (*models.Report, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrInvalidReportID
	}
	st := models.Status(strings.TrimSpace(status))
	if !st.Valid() {
		return nil, invalid("Invalid status")
	}

	if err := s.store.Reports().UpdateStatus(ctx, id, st); err != nil {
		return nil, fromStore(err, ErrReportNotFound)
	}
	report, err := s.store.Reports().Get(ctx, id)
	if err != nil {
		return nil, fromStore(err, ErrReportNotFound)
	}
	return report, nil
}

func validImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
