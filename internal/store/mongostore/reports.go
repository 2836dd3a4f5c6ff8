package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type reportStore struct {
	s *Store
}

func (r *reportStore) Create(ctx context.Context, report *models.Report) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.Status == "" {
		report.Status = models.StatusSubmitted
	}
	now := time.Now().UTC()
	report.CreatedAt, report.UpdatedAt = now, now
	report.Score = int(models.Upvote)

	session, err := r.s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.s.reports.InsertOne(sc, fromModel(report)); err != nil {
			return nil, err
		}
		_, err := r.s.votes.InsertOne(sc, vote{
			ID:        uuid.NewString(),
			ReportID:  report.ID.String(),
			UserID:    report.UserID.String(),
			Value:     int(models.Upvote),
			CreatedAt: now,
			UpdatedAt: now,
		})
		return nil, err
	})
	return translate(err)
}

func (r *reportStore) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var doc report
	if err := r.s.reports.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	m, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *reportStore) ListGlobal(ctx context.Context, offset, limit int) ([]models.Report, error) {
	if offset < 0 || limit < 0 {
		return nil, store.ErrBadWindow
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "score", Value: -1}, {Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return r.list(ctx, bson.M{}, opts)
}

func (r *reportStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.list(ctx, bson.M{"user_id": ownerID.String()}, opts)
}

func (r *reportStore) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Report, error) {
	cur, err := r.s.reports.Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(err)
	}
	var docs []report
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}

	reports := make([]models.Report, 0, len(docs))
	for _, d := range docs {
		m, err := d.toModel()
		if err != nil {
			return nil, err
		}
		reports = append(reports, m)
	}
	return reports, nil
}

func (r *reportStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	res, err := r.s.reports.UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
