// Package testutil holds an in-memory store.Store and fixtures shared by
// service and handler tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/store"
	"github.com/google/uuid"
)

type voteKey struct {
	report uuid.UUID
	user   uuid.UUID
}

// MemStore keeps reports and votes in maps. WithVoteLock serializes callers
// per (report, user) and rolls back writes made by a failing callback.
type MemStore struct {
	mu            sync.Mutex
	reports       map[uuid.UUID]models.Report
	votes         map[voteKey]models.VoteValue
	keyLocks      map[voteKey]*sync.Mutex
	clock         time.Time
	failure       error
	adjustFailure error

	FindBatchCalls atomic.Int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		reports:  make(map[uuid.UUID]models.Report),
		votes:    make(map[voteKey]models.VoteValue),
		keyLocks: make(map[voteKey]*sync.Mutex),
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Fail makes every subsequent operation return err. Pass nil to recover.
func (m *MemStore) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// FailAdjust makes score adjustments inside WithVoteLock return err after
// the vote write has gone through, so the callback has to roll back.
func (m *MemStore) FailAdjust(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustFailure = err
}

func (m *MemStore) failed() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

// Put inserts a report verbatim, without the owner's vote. A zero
// CreatedAt is replaced by the next tick of the store clock.
func (m *MemStore) Put(r models.Report) models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.tick()
	}
	m.reports[r.ID] = r
	return r
}

// PutVote writes a vote record without touching the score.
func (m *MemStore) PutVote(reportID, userID uuid.UUID, value models.VoteValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes[voteKey{reportID, userID}] = value
}

func (m *MemStore) VoteOf(reportID, userID uuid.UUID) (models.VoteValue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteKey{reportID, userID}]
	return v, ok
}

func (m *MemStore) ScoreOf(reportID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reports[reportID].Score
}

// SumVotes adds up every vote record on the report.
func (m *MemStore) SumVotes(reportID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for k, v := range m.votes {
		if k.report == reportID {
			sum += int(v)
		}
	}
	return sum
}

// VoteCount returns how many vote records exist on the report.
func (m *MemStore) VoteCount(reportID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.votes {
		if k.report == reportID {
			n++
		}
	}
	return n
}

// tick must be called with mu held.
func (m *MemStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *MemStore) Reports() store.ReportStore { return (*memReports)(m) }

func (m *MemStore) Votes() store.VoteStore { return &memVotes{m: m} }

func (m *MemStore) WithVoteLock(_ context.Context, reportID, userID uuid.UUID, fn func(tx store.VoteTx) error) error {
	if err := m.failed(); err != nil {
		return err
	}

	key := voteKey{reportID, userID}
	m.mu.Lock()
	lock, ok := m.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.keyLocks[key] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	tx := &memVotes{m: m, inTx: true}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (m *MemStore) Ping(context.Context) error { return m.failed() }

func (m *MemStore) Close(context.Context) error { return nil }

type memReports MemStore

func (r *memReports) mem() *MemStore { return (*MemStore)(r) }

func (r *memReports) Create(_ context.Context, report *models.Report) error {
	m := r.mem()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.Status == "" {
		report.Status = models.StatusSubmitted
	}
	report.Score = int(models.Upvote)
	report.CreatedAt = m.tick()
	report.UpdatedAt = report.CreatedAt
	m.reports[report.ID] = *report
	m.votes[voteKey{report.ID, report.UserID}] = models.Upvote
	return nil
}

func (r *memReports) Get(_ context.Context, id uuid.UUID) (*models.Report, error) {
	m := r.mem()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	report, ok := m.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &report, nil
}

func (r *memReports) ListGlobal(_ context.Context, offset, limit int) ([]models.Report, error) {
	all, err := r.list(func(models.Report) bool { return true }, func(a, b models.Report) bool {
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	if offset < 0 || limit < 0 {
		return nil, store.ErrBadWindow
	}
	if offset >= len(all) {
		return []models.Report{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memReports) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Report, error) {
	return r.list(func(rep models.Report) bool { return rep.UserID == ownerID }, func(a, b models.Report) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func (r *memReports) list(keep func(models.Report) bool, less func(a, b models.Report) bool) ([]models.Report, error) {
	m := r.mem()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}
	out := make([]models.Report, 0, len(m.reports))
	for _, rep := range m.reports {
		if keep(rep) {
			out = append(out, rep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

func (r *memReports) UpdateStatus(_ context.Context, id uuid.UUID, status models.Status) error {
	m := r.mem()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return m.failure
	}
	report, ok := m.reports[id]
	if !ok {
		return store.ErrNotFound
	}
	report.Status = status
	report.UpdatedAt = m.tick()
	m.reports[id] = report
	return nil
}

// memVotes serves both Votes() and the view handed to WithVoteLock
// callbacks. Inside a callback every write is journaled for rollback.
type memVotes struct {
	m    *MemStore
	inTx bool
	undo []func()
}

func (v *memVotes) Find(_ context.Context, reportID, userID uuid.UUID) (models.VoteValue, bool, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if v.m.failure != nil {
		return models.NoVote, false, v.m.failure
	}
	value, ok := v.m.votes[voteKey{reportID, userID}]
	return value, ok, nil
}

func (v *memVotes) FindBatch(_ context.Context, userID uuid.UUID, reportIDs []uuid.UUID) (map[uuid.UUID]models.VoteValue, error) {
	v.m.FindBatchCalls.Add(1)
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if v.m.failure != nil {
		return nil, v.m.failure
	}
	out := make(map[uuid.UUID]models.VoteValue)
	for _, id := range reportIDs {
		if value, ok := v.m.votes[voteKey{id, userID}]; ok {
			out[id] = value
		}
	}
	return out, nil
}

func (v *memVotes) Upsert(_ context.Context, reportID, userID uuid.UUID, value models.VoteValue) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if v.m.failure != nil {
		return v.m.failure
	}
	key := voteKey{reportID, userID}
	v.journalVote(key)
	v.m.votes[key] = value
	return nil
}

func (v *memVotes) Delete(_ context.Context, reportID, userID uuid.UUID) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if v.m.failure != nil {
		return v.m.failure
	}
	key := voteKey{reportID, userID}
	v.journalVote(key)
	delete(v.m.votes, key)
	return nil
}

func (v *memVotes) AdjustBy(_ context.Context, reportID uuid.UUID, delta int) (int, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if v.m.failure != nil {
		return 0, v.m.failure
	}
	if v.inTx && v.m.adjustFailure != nil {
		return 0, v.m.adjustFailure
	}
	report, ok := v.m.reports[reportID]
	if !ok {
		return 0, store.ErrNotFound
	}
	report.Score += delta
	v.m.reports[reportID] = report
	if v.inTx {
		v.undo = append(v.undo, func() {
			r := v.m.reports[reportID]
			r.Score -= delta
			v.m.reports[reportID] = r
		})
	}
	return report.Score, nil
}

func (v *memVotes) Score(_ context.Context, reportID uuid.UUID) (int, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if v.m.failure != nil {
		return 0, v.m.failure
	}
	report, ok := v.m.reports[reportID]
	if !ok {
		return 0, store.ErrNotFound
	}
	return report.Score, nil
}

// journalVote must be called with mu held.
func (v *memVotes) journalVote(key voteKey) {
	if !v.inTx {
		return
	}
	prev, existed := v.m.votes[key]
	v.undo = append(v.undo, func() {
		if existed {
			v.m.votes[key] = prev
		} else {
			delete(v.m.votes, key)
		}
	})
}

func (v *memVotes) rollback() {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for i := len(v.undo) - 1; i >= 0; i-- {
		v.undo[i]()
	}
	v.undo = nil
}
