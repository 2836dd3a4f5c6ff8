// Package store defines the persistence contracts consumed by the voting
// core. Implementations live in pgstore (gorm/PostgreSQL) and mongostore.
package store

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("concurrent write conflict")
	ErrBadWindow = errors.New("negative offset or limit")
)

// VoteStore maps (report, user) to a vote value. At most one record exists
// per pair.
type VoteStore interface {
	// Find returns the stored value and whether a record exists.
	Find(ctx context.Context, reportID, userID uuid.UUID) (models.VoteValue, bool, error)
	// FindBatch returns values only for report IDs the user has voted on.
	FindBatch(ctx context.Context, userID uuid.UUID, reportIDs []uuid.UUID) (map[uuid.UUID]models.VoteValue, error)
	// Upsert fails with ErrConflict when a racing insert wins the unique key.
	Upsert(ctx context.Context, reportID, userID uuid.UUID, value models.VoteValue) error
	Delete(ctx context.Context, reportID, userID uuid.UUID) error
}

// ScoreLedger holds the authoritative score per report.
type ScoreLedger interface {
	// AdjustBy applies delta with the storage engine's native atomic
	// increment and returns the stored result.
	AdjustBy(ctx context.Context, reportID uuid.UUID, delta int) (int, error)
	Score(ctx context.Context, reportID uuid.UUID) (int, error)
}

// VoteTx is the storage view available inside a vote critical section.
type VoteTx interface {
	VoteStore
	ScoreLedger
}

type ReportStore interface {
	// Create inserts the report with score 1 together with the creator's
	// upvote, atomically.
	Create(ctx context.Context, report *models.Report) error
	Get(ctx context.Context, id uuid.UUID) (*models.Report, error)
	// ListGlobal orders by score desc, then created_at desc. A negative
	// offset or limit fails with ErrBadWindow.
	ListGlobal(ctx context.Context, offset, limit int) ([]models.Report, error)
	// ListByOwner orders by created_at desc.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Report, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error
}

type Store interface {
	Reports() ReportStore
	Votes() VoteStore
	// WithVoteLock runs fn so that every read and write of the (report,
	// user) vote record, plus the matching score adjustment, is serialized
	// against concurrent callers for the same pair. Writes are committed
	// when fn returns nil and discarded otherwise. Callers for different
	// users on the same report do not block each other.
	WithVoteLock(ctx context.Context, reportID, userID uuid.UUID, fn func(tx VoteTx) error) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
