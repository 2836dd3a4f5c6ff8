package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type voteStore struct {
	votes *mongo.Collection
}

func voteFilter(reportID, userID uuid.UUID) bson.M {
	return bson.M{"report_id": reportID.String(), "user_id": userID.String()}
}

func (s *voteStore) Find(ctx context.Context, reportID, userID uuid.UUID) (models.VoteValue, bool, error) {
	v, found, err := s.find(ctx, reportID, userID)
	if err != nil || !found {
		return models.NoVote, false, err
	}
	return models.VoteValue(v.Value), true, nil
}

func (s *voteStore) find(ctx context.Context, reportID, userID uuid.UUID) (vote, bool, error) {
	var v vote
	err := s.votes.FindOne(ctx, voteFilter(reportID, userID)).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return vote{}, false, nil
	}
	if err != nil {
		return vote{}, false, translate(err)
	}
	return v, true, nil
}

func (s *voteStore) FindBatch(ctx context.Context, userID uuid.UUID, reportIDs []uuid.UUID) (map[uuid.UUID]models.VoteValue, error) {
	if len(reportIDs) == 0 {
		return map[uuid.UUID]models.VoteValue{}, nil
	}

	ids := make([]string, len(reportIDs))
	for i, id := range reportIDs {
		ids[i] = id.String()
	}

	cur, err := s.votes.Find(ctx, bson.M{"user_id": userID.String(), "report_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, translate(err)
	}
	var votes []vote
	if err := cur.All(ctx, &votes); err != nil {
		return nil, translate(err)
	}
	return votesByReport(votes)
}

func votesByReport(votes []vote) (map[uuid.UUID]models.VoteValue, error) {
	result := make(map[uuid.UUID]models.VoteValue, len(votes))
	for _, v := range votes {
		id, err := uuid.Parse(v.ReportID)
		if err != nil {
			return nil, fmt.Errorf("vote %q report id: %w", v.ID, err)
		}
		result[id] = models.VoteValue(v.Value)
	}
	return result, nil
}

// Upsert and Delete outside WithVoteLock write unconditionally.
func (s *voteStore) Upsert(ctx context.Context, reportID, userID uuid.UUID, value models.VoteValue) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{"value": int(value), "updated_at": now},
		"$setOnInsert": bson.M{
			"_id":        uuid.NewString(),
			"created_at": now,
		},
	}
	_, err := s.votes.UpdateOne(ctx, voteFilter(reportID, userID), update, options.Update().SetUpsert(true))
	return translate(err)
}

func (s *voteStore) Delete(ctx context.Context, reportID, userID uuid.UUID) error {
	_, err := s.votes.DeleteOne(ctx, voteFilter(reportID, userID))
	return translate(err)
}

type ledger struct {
	reports *mongo.Collection
}

func (l *ledger) AdjustBy(ctx context.Context, reportID uuid.UUID, delta int) (int, error) {
	var doc struct {
		Score int `bson:"score"`
	}
	err := l.reports.FindOneAndUpdate(
		ctx,
		bson.M{"_id": reportID.String()},
		bson.M{"$inc": bson.M{"score": delta}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"score": 1}),
	).Decode(&doc)
	if err != nil {
		return 0, translate(err)
	}
	return doc.Score, nil
}

func (l *ledger) Score(ctx context.Context, reportID uuid.UUID) (int, error) {
	var doc struct {
		Score int `bson:"score"`
	}
	err := l.reports.FindOne(
		ctx,
		bson.M{"_id": reportID.String()},
		options.FindOne().SetProjection(bson.M{"score": 1}),
	).Decode(&doc)
	if err != nil {
		return 0, translate(err)
	}
	return doc.Score, nil
}

type pair struct {
	report uuid.UUID
	user   uuid.UUID
}

// voteTx guards vote documents with compare-and-swap. Find remembers the
// document it read; Upsert and Delete only apply while the stored document
// still carries that value and fail with store.ErrConflict otherwise. The
// score moves with a single-document $inc. Every write pushes its inverse
// onto undo so a failing callback can be compensated.
type voteTx struct {
	voteStore
	ledger

	// seen holds the last document read or written per pair. A zero ID
	// means no document existed.
	seen map[pair]vote
	undo []func(ctx context.Context) error
}

func newVoteTx(votes, reports *mongo.Collection) *voteTx {
	return &voteTx{
		voteStore: voteStore{votes: votes},
		ledger:    ledger{reports: reports},
		seen:      make(map[pair]vote),
	}
}

func (tx *voteTx) Find(ctx context.Context, reportID, userID uuid.UUID) (models.VoteValue, bool, error) {
	doc, err := tx.observe(ctx, reportID, userID)
	if err != nil || doc.ID == "" {
		return models.NoVote, false, err
	}
	return models.VoteValue(doc.Value), true, nil
}

func (tx *voteTx) observe(ctx context.Context, reportID, userID uuid.UUID) (vote, error) {
	key := pair{reportID, userID}
	if doc, ok := tx.seen[key]; ok {
		return doc, nil
	}
	doc, _, err := tx.voteStore.find(ctx, reportID, userID)
	if err != nil {
		return vote{}, err
	}
	tx.seen[key] = doc
	return doc, nil
}

func (tx *voteTx) Upsert(ctx context.Context, reportID, userID uuid.UUID, value models.VoteValue) error {
	prev, err := tx.observe(ctx, reportID, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if prev.ID == "" {
		doc := vote{
			ID:        uuid.NewString(),
			ReportID:  reportID.String(),
			UserID:    userID.String(),
			Value:     int(value),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := tx.votes.InsertOne(ctx, doc); err != nil {
			return translate(err)
		}
		tx.undo = append(tx.undo, func(ctx context.Context) error {
			_, err := tx.votes.DeleteOne(ctx, bson.M{"_id": doc.ID, "value": doc.Value})
			return err
		})
		tx.seen[pair{reportID, userID}] = doc
		return nil
	}

	var next vote
	err = tx.votes.FindOneAndUpdate(ctx,
		bson.M{"_id": prev.ID, "value": prev.Value},
		bson.M{"$set": bson.M{"value": int(value), "updated_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&next)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: vote %s moved since read", store.ErrConflict, prev.ID)
	}
	if err != nil {
		return translate(err)
	}
	tx.undo = append(tx.undo, func(ctx context.Context) error {
		_, err := tx.votes.ReplaceOne(ctx, bson.M{"_id": next.ID, "value": next.Value}, prev)
		return err
	})
	tx.seen[pair{reportID, userID}] = next
	return nil
}

func (tx *voteTx) Delete(ctx context.Context, reportID, userID uuid.UUID) error {
	prev, err := tx.observe(ctx, reportID, userID)
	if err != nil {
		return err
	}
	if prev.ID == "" {
		return nil
	}

	res, err := tx.votes.DeleteOne(ctx, bson.M{"_id": prev.ID, "value": prev.Value})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: vote %s moved since read", store.ErrConflict, prev.ID)
	}
	tx.undo = append(tx.undo, func(ctx context.Context) error {
		_, err := tx.votes.InsertOne(ctx, prev)
		return err
	})
	tx.seen[pair{reportID, userID}] = vote{}
	return nil
}

func (tx *voteTx) AdjustBy(ctx context.Context, reportID uuid.UUID, delta int) (int, error) {
	score, err := tx.ledger.AdjustBy(ctx, reportID, delta)
	if err != nil {
		return 0, err
	}
	tx.undo = append(tx.undo, func(ctx context.Context) error {
		_, err := tx.ledger.AdjustBy(ctx, reportID, -delta)
		return err
	})
	return score, nil
}

// rollback applies the recorded inverses newest first.
func (tx *voteTx) rollback(ctx context.Context) error {
	var errs []error
	for i := len(tx.undo) - 1; i >= 0; i-- {
		if err := tx.undo[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	tx.undo = nil
	return errors.Join(errs...)
}

var _ store.VoteTx = (*voteTx)(nil)
