package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVotingFixture(t *testing.T) (*VotingService, *testutil.MemStore, models.Report) {
	t.Helper()
	mem := testutil.NewMemStore()
	report := testutil.NewReport(uuid.New(), "Broken streetlight")
	require.NoError(t, mem.Reports().Create(context.Background(), &report))
	return NewVotingService(mem), mem, report
}

func TestCastVoteScenario(t *testing.T) {
	svc, mem, report := newVotingFixture(t)
	ctx := context.Background()
	voter := uuid.New()
	id := report.ID.String()

	assert.Equal(t, 1, mem.ScoreOf(report.ID))

	steps := []struct {
		name      string
		requested int
		score     int
		changed   bool
	}{
		{"upvote", 1, 2, true},
		{"repeat upvote", 1, 2, false},
		{"flip to downvote", -1, 0, true},
		{"retract", 0, 1, true},
	}
	for _, step := range steps {
		res, err := svc.CastVote(ctx, id, voter, step.requested)
		require.NoError(t, err, step.name)
		assert.Equal(t, step.score, res.Score, step.name)
		assert.Equal(t, models.VoteValue(step.requested), res.UserVote, step.name)
		assert.Equal(t, step.changed, res.Changed, step.name)
		assert.Equal(t, mem.SumVotes(report.ID), mem.ScoreOf(report.ID), step.name)
	}

	_, exists := mem.VoteOf(report.ID, voter)
	assert.False(t, exists)
}

func TestCastVoteFlipIsOneStep(t *testing.T) {
	svc, mem, report := newVotingFixture(t)
	ctx := context.Background()
	voter := uuid.New()

	_, err := svc.CastVote(ctx, report.ID.String(), voter, 1)
	require.NoError(t, err)
	before := mem.ScoreOf(report.ID)

	res, err := svc.CastVote(ctx, report.ID.String(), voter, -1)
	require.NoError(t, err)
	assert.Equal(t, before-2, res.Score)

	value, ok := mem.VoteOf(report.ID, voter)
	require.True(t, ok)
	assert.Equal(t, models.Downvote, value)
}

func TestCastVoteRetractWithoutVoteIsNoop(t *testing.T) {
	svc, mem, report := newVotingFixture(t)

	res, err := svc.CastVote(context.Background(), report.ID.String(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, models.NoVote, res.UserVote)
	assert.False(t, res.Changed)
	assert.Equal(t, 1, mem.VoteCount(report.ID))
}

func TestCastVoteRejectsSelfVote(t *testing.T) {
	for _, requested := range []int{-1, 0, 1} {
		svc, mem, report := newVotingFixture(t)

		_, err := svc.CastVote(context.Background(), report.ID.String(), report.UserID, requested)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrForbidden)
		assert.ErrorIs(t, err, ErrSelfVote)
		assert.Equal(t, 1, mem.ScoreOf(report.ID))

		value, ok := mem.VoteOf(report.ID, report.UserID)
		require.True(t, ok)
		assert.Equal(t, models.Upvote, value)
	}
}

func TestCastVoteInvalidArguments(t *testing.T) {
	svc, _, report := newVotingFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		reportID string
		voter    uuid.UUID
		value    int
		kind     error
	}{
		{"value too high", report.ID.String(), uuid.New(), 2, ErrInvalidArgument},
		{"value too low", report.ID.String(), uuid.New(), -5, ErrInvalidArgument},
		{"malformed id", "not-a-uuid", uuid.New(), 1, ErrInvalidArgument},
		{"missing voter", report.ID.String(), uuid.Nil, 1, ErrUnauthorized},
		{"unknown report", uuid.NewString(), uuid.New(), 1, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CastVote(ctx, tt.reportID, tt.voter, tt.value)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestCastVoteStorageFailureIsInternal(t *testing.T) {
	svc, mem, report := newVotingFixture(t)
	cause := errors.New("connection reset")
	mem.Fail(cause)

	_, err := svc.CastVote(context.Background(), report.ID.String(), uuid.New(), 1)
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
}

func TestCastVoteConflictIsSurfaced(t *testing.T) {
	svc, mem, report := newVotingFixture(t)
	ctx := context.Background()
	voter := uuid.New()
	_, err := svc.CastVote(ctx, report.ID.String(), voter, -1)
	require.NoError(t, err)
	require.Equal(t, 0, mem.ScoreOf(report.ID))

	mem.FailAdjust(store.ErrConflict)
	_, err = svc.CastVote(ctx, report.ID.String(), voter, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, ErrVoteConflict.Msg, err.Error())

	// The vote write made before the failure is rolled back.
	value, found := mem.VoteOf(report.ID, voter)
	assert.True(t, found)
	assert.Equal(t, models.Downvote, value)
	assert.Equal(t, 0, mem.ScoreOf(report.ID))

	// A retry after the conflict clears goes through.
	mem.FailAdjust(nil)
	res, err := svc.CastVote(ctx, report.ID.String(), voter, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Score)
	assert.Equal(t, models.Upvote, res.UserVote)
}

func TestCastVoteDuplicateConcurrentRequests(t *testing.T) {
	svc, mem, report := newVotingFixture(t)
	voter := uuid.New()

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CastVote(context.Background(), report.ID.String(), voter, 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Equal(t, 2, mem.ScoreOf(report.ID))
	assert.Equal(t, 2, mem.VoteCount(report.ID))
	value, ok := mem.VoteOf(report.ID, voter)
	require.True(t, ok)
	assert.Equal(t, models.Upvote, value)
}

func TestCastVoteManyVotersKeepScoreInvariant(t *testing.T) {
	svc, mem, report := newVotingFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		voter := uuid.New()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sequence := []int{1, -1, 0, 1}
			if i%2 == 0 {
				sequence = []int{-1, -1, 1, 0}
			}
			for _, v := range sequence {
				_, err := svc.CastVote(context.Background(), report.ID.String(), voter, v)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	// 10 voters end at +1, 10 at no vote, plus the owner.
	assert.Equal(t, 11, mem.ScoreOf(report.ID))
	assert.Equal(t, mem.SumVotes(report.ID), mem.ScoreOf(report.ID))
}
