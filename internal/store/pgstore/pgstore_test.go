package pgstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)

	return New(db), mock
}

func TestAdjustByReturnsStoredScore(t *testing.T) {
	s, mock := newMockStore(t)
	reportID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE reports SET score = score + $1 WHERE id = $2 RETURNING score")).
		WithArgs(-2, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"score"}).AddRow(7))

	l := &ledger{db: s.db}
	score, err := l.AdjustBy(context.Background(), reportID, -2)

	require.NoError(t, err)
	assert.Equal(t, 7, score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustByMissingReport(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE reports SET score = score + $1")).
		WillReturnRows(sqlmock.NewRows([]string{"score"}))

	l := &ledger{db: s.db}
	_, err := l.AdjustBy(context.Background(), uuid.New(), 1)

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindWithoutRecord(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "votes" WHERE report_id = \$1 AND user_id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id", "user_id", "value"}))

	value, found, err := s.Votes().Find(context.Background(), uuid.New(), uuid.New())

	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, models.NoVote, value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBatchSingleQuery(t *testing.T) {
	s, mock := newMockStore(t)
	userID := uuid.New()
	r1, r2, r3 := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "votes" WHERE user_id = \$1 AND report_id IN \(`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id", "user_id", "value"}).
			AddRow(uuid.New().String(), r1.String(), userID.String(), 1).
			AddRow(uuid.New().String(), r3.String(), userID.String(), -1))

	votes, err := s.Votes().FindBatch(context.Background(), userID, []uuid.UUID{r1, r2, r3})

	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]models.VoteValue{r1: models.Upvote, r3: models.Downvote}, votes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBatchEmptyInputSkipsQuery(t *testing.T) {
	s, mock := newMockStore(t)

	votes, err := s.Votes().FindBatch(context.Background(), uuid.New(), nil)

	require.NoError(t, err)
	assert.Empty(t, votes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithVoteLockCommits(t *testing.T) {
	s, mock := newMockStore(t)
	reportID, userID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(lockKey(reportID, userID)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE reports SET score = score + $1")).
		WillReturnRows(sqlmock.NewRows([]string{"score"}).AddRow(2))
	mock.ExpectCommit()

	var got int
	err := s.WithVoteLock(context.Background(), reportID, userID, func(tx store.VoteTx) error {
		score, err := tx.AdjustBy(context.Background(), reportID, 1)
		got = score
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithVoteLockRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := s.WithVoteLock(context.Background(), uuid.New(), uuid.New(), func(store.VoteTx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusMissingReport(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "reports" SET "status"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Reports().UpdateStatus(context.Background(), uuid.New(), models.StatusResolved)

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockKeyDependsOnBothIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	assert.Equal(t, lockKey(a, b), lockKey(a, b))
	assert.NotEqual(t, lockKey(a, b), lockKey(b, a))
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), store.ErrNotFound)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey), store.ErrConflict)

	other := errors.New("connection reset")
	assert.Equal(t, other, translate(other))
}

func TestListGlobalRejectsNegativeOffset(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.Reports().ListGlobal(context.Background(), -20, 10)
	assert.ErrorIs(t, err, store.ErrBadWindow)
	assert.NoError(t, mock.ExpectationsWereMet())
}
