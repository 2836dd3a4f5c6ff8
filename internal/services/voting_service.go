package services

import (
	"context"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/google/uuid"
)

// VotingService applies vote transitions and keeps each report's score equal
// to the sum of its current votes.
type VotingService struct {
	store store.Store
}

func NewVotingService(s store.Store) *VotingService {
	return &VotingService{store: s}
}

type VoteResult struct {
	Score    int              `json:"score"`
	UserVote models.VoteValue `json:"userVote"`
	// Changed is false when the request matched the stored vote.
	Changed bool `json:"-"`
}

// CastVote moves voterID's vote on the report to requested (-1, 0 or 1).
//
// The score moves by requested minus the previous vote. The previous vote is
// read, the record written and the score adjusted under one WithVoteLock
// call, so duplicate concurrent requests cannot both apply their delta.
// Repeating a request is a no-op, which makes CastVote safe to retry.
func (s *VotingService) CastVote(ctx context.Context, rawReportID string, voterID uuid.UUID, requested int) (*VoteResult, error) {
	value := models.VoteValue(requested)
	if !value.Valid() {
		return nil, ErrInvalidVoteValue
	}
	reportID, err := uuid.Parse(rawReportID)
	if err != nil {
		return nil, ErrInvalidReportID
	}
	if voterID == uuid.Nil {
		return nil, ErrMissingIdentity
	}

	report, err := s.store.Reports().Get(ctx, reportID)
	if err != nil {
		return nil, fromStore(err, ErrReportNotFound)
	}
	if report.UserID == voterID {
		return nil, ErrSelfVote
	}

	var result VoteResult
	err = s.store.WithVoteLock(ctx, reportID, voterID, func(tx store.VoteTx) error {
		previous, _, err := tx.Find(ctx, reportID, voterID)
		if err != nil {
			return err
		}

		delta := int(value - previous)
		if delta == 0 {
			score, err := tx.Score(ctx, reportID)
			if err != nil {
				return err
			}
			result = VoteResult{Score: score, UserVote: value}
			return nil
		}

		if value == models.NoVote {
			err = tx.Delete(ctx, reportID, voterID)
		} else {
			err = tx.Upsert(ctx, reportID, voterID, value)
		}
		if err != nil {
			return err
		}

		score, err := tx.AdjustBy(ctx, reportID, delta)
		if err != nil {
			return err
		}
		result = VoteResult{Score: score, UserVote: value, Changed: true}
		return nil
	})
	if err != nil {
		return nil, fromStore(err, ErrReportNotFound)
	}
	return &result, nil
}
