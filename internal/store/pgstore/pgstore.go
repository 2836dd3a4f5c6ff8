// Package pgstore implements the store contracts on PostgreSQL through gorm.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE codes treated as a lost race.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// Store shares its *gorm.DB with the account services; the handle is closed
// by its owner, not by Store.Close.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Reports() store.ReportStore { return &reportStore{db: s.db} }

func (s *Store) Votes() store.VoteStore { return &voteStore{db: s.db} }

// WithVoteLock takes a transaction-scoped advisory lock keyed by the (report,
// user) pair. The lock is released on commit or rollback.
func (s *Store) WithVoteLock(ctx context.Context, reportID, userID uuid.UUID, fn func(tx store.VoteTx) error) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", lockKey(reportID, userID)).Error; err != nil {
			return fmt.Errorf("failed to acquire vote lock: %w", err)
		}
		return fn(&voteTx{voteStore: voteStore{db: tx}, ledger: ledger{db: tx}})
	}))
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(context.Context) error { return nil }

func lockKey(reportID, userID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(reportID[:])
	h.Write(userID[:])
	return int64(h.Sum64())
}

type voteTx struct {
	voteStore
	ledger
}

type voteStore struct {
	db *gorm.DB
}

func (s *voteStore) Find(ctx context.Context, reportID, userID uuid.UUID) (models.VoteValue, bool, error) {
	var vote models.Vote
	err := s.db.WithContext(ctx).
		Where("report_id = ? AND user_id = ?", reportID, userID).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NoVote, false, nil
	}
	if err != nil {
		return models.NoVote, false, translate(err)
	}
	return vote.Value, true, nil
}

func (s *voteStore) FindBatch(ctx context.Context, userID uuid.UUID, reportIDs []uuid.UUID) (map[uuid.UUID]models.VoteValue, error) {
	result := make(map[uuid.UUID]models.VoteValue, len(reportIDs))
	if len(reportIDs) == 0 {
		return result, nil
	}

	var votes []models.Vote
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND report_id IN ?", userID, reportIDs).
		Find(&votes).Error; err != nil {
		return nil, translate(err)
	}
	for _, v := range votes {
		result[v.ReportID] = v.Value
	}
	return result, nil
}

func (s *voteStore) Upsert(ctx context.Context, reportID, userID uuid.UUID, value models.VoteValue) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.Vote{}).
		Where("report_id = ? AND user_id = ?", reportID, userID).
		Updates(map[string]interface{}{"value": value, "updated_at": time.Now()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	vote := models.Vote{
		ID:       uuid.New(),
		ReportID: reportID,
		UserID:   userID,
		Value:    value,
	}
	return translate(db.Create(&vote).Error)
}

func (s *voteStore) Delete(ctx context.Context, reportID, userID uuid.UUID) error {
	return translate(s.db.WithContext(ctx).
		Where("report_id = ? AND user_id = ?", reportID, userID).
		Delete(&models.Vote{}).Error)
}

type ledger struct {
	db *gorm.DB
}

func (l *ledger) AdjustBy(ctx context.Context, reportID uuid.UUID, delta int) (int, error) {
	var score int
	res := l.db.WithContext(ctx).
		Raw("UPDATE reports SET score = score + ? WHERE id = ? RETURNING score", delta, reportID).
		Scan(&score)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, store.ErrNotFound
	}
	return score, nil
}

func (l *ledger) Score(ctx context.Context, reportID uuid.UUID) (int, error) {
	var score int
	res := l.db.WithContext(ctx).
		Raw("SELECT score FROM reports WHERE id = ?", reportID).
		Scan(&score)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, store.ErrNotFound
	}
	return score, nil
}

// translate maps driver errors onto the store taxonomy, keeping the cause.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		}
	}
	return err
}
