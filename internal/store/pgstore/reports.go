package pgstore

import (
	"context"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type reportStore struct {
	db *gorm.DB
}

func (s *reportStore) Create(ctx context.Context, report *models.Report) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.Status == "" {
		report.Status = models.StatusSubmitted
	}
	report.Score = int(models.Upvote)

	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return err
		}
		return tx.Create(&models.Vote{
			ID:       uuid.New(),
			ReportID: report.ID,
			UserID:   report.UserID,
			Value:    models.Upvote,
		}).Error
	}))
}

func (s *reportStore) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&report).Error; err != nil {
		return nil, translate(err)
	}
	return &report, nil
}

func (s *reportStore) ListGlobal(ctx context.Context, offset, limit int) ([]models.Report, error) {
	if offset < 0 || limit < 0 {
		return nil, store.ErrBadWindow
	}
	var reports []models.Report
	err := s.db.WithContext(ctx).
		Order("score DESC").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&reports).Error
	if err != nil {
		return nil, translate(err)
	}
	return reports, nil
}

func (s *reportStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Report, error) {
	var reports []models.Report
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, translate(err)
	}
	return reports, nil
}

func (s *reportStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	res := s.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
