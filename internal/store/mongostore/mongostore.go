// Package mongostore implements the store contracts on MongoDB. Report
// creation runs inside a multi-document transaction, so the server must be a
// replica set or a sharded cluster. Votes use compare-and-swap on the vote
// document and a single-document $inc on the report, so voters on the same
// report never contend with each other.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	reportsCollection = "reports"
	votesCollection   = "report_votes"
)

type Store struct {
	client  *mongo.Client
	reports *mongo.Collection
	votes   *mongo.Collection
}

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	dctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(dctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(dctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:  client,
		reports: db.Collection(reportsCollection),
		votes:   db.Collection(votesCollection),
	}
	if err := s.ensureIndexes(dctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.Info("mongo connected", "db", dbName)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.votes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "report_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("vote indexes: %w", err)
	}

	if _, err := s.reports.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "score", Value: -1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("report indexes: %w", err)
	}
	return nil
}

func (s *Store) Reports() store.ReportStore { return &reportStore{s: s} }

func (s *Store) Votes() store.VoteStore { return &voteStore{votes: s.votes} }

// WithVoteLock runs fn without a server transaction. Vote writes are
// conditional on the document fn read, so of two callers racing on the same
// (report, user) pair one gets store.ErrConflict. When fn fails, its writes
// are compensated in reverse order; a compensation failure is logged and the
// score may then drift until the pair is voted again.
func (s *Store) WithVoteLock(ctx context.Context, reportID, userID uuid.UUID, fn func(tx store.VoteTx) error) error {
	tx := newVoteTx(s.votes, s.reports)
	if err := fn(tx); err != nil {
		if undoErr := tx.rollback(context.WithoutCancel(ctx)); undoErr != nil {
			slog.Error("vote rollback failed",
				"report_id", reportID.String(),
				"user_id", userID.String(),
				"error", undoErr,
			)
		}
		return translate(err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// translate maps driver errors onto the store taxonomy, keeping the cause.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
		return err
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorLabel("TransientTransactionError") || se.HasErrorCode(112)) {
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	}
	return err
}

// report mirrors models.Report with a GeoJSON location for the 2dsphere index.
type report struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Category    string    `bson:"category"`
	Address     string    `bson:"address"`
	Location    geoPoint  `bson:"location"`
	Images      []string  `bson:"images"`
	Status      string    `bson:"status"`
	Score       int       `bson:"score"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"` // [longitude, latitude]
}

type vote struct {
	ID        string    `bson:"_id"`
	ReportID  string    `bson:"report_id"`
	UserID    string    `bson:"user_id"`
	Value     int       `bson:"value"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func fromModel(r *models.Report) report {
	images := []string(r.Images)
	if images == nil {
		images = []string{}
	}
	return report{
		ID:          r.ID.String(),
		UserID:      r.UserID.String(),
		Title:       r.Title,
		Description: r.Description,
		Category:    string(r.Category),
		Address:     r.Address,
		Location:    geoPoint{Type: "Point", Coordinates: []float64{r.Longitude, r.Latitude}},
		Images:      images,
		Status:      string(r.Status),
		Score:       r.Score,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (d report) toModel() (models.Report, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.Report{}, fmt.Errorf("report %q: %w", d.ID, err)
	}
	owner, err := uuid.Parse(d.UserID)
	if err != nil {
		return models.Report{}, fmt.Errorf("report %q owner: %w", d.ID, err)
	}
	r := models.Report{
		ID:          id,
		UserID:      owner,
		Title:       d.Title,
		Description: d.Description,
		Category:    models.Category(d.Category),
		Address:     d.Address,
		Images:      d.Images,
		Status:      models.Status(d.Status),
		Score:       d.Score,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if len(d.Location.Coordinates) == 2 {
		r.Longitude = d.Location.Coordinates[0]
		r.Latitude = d.Location.Coordinates[1]
	}
	return r, nil
}
