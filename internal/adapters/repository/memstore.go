package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcronin4/scrappers-cup/internal/domain/model"
)

// MemoryStore is an in-memory Store guarded by a single RWMutex.
// Every write, CommitRebuild included, happens under the write lock, so readers
// observe either the state before or after a batch.
type MemoryStore struct {
	mu          sync.RWMutex
	competitors map[string]model.Competitor
	contests    map[string]model.ContestRecord
	events      map[string]model.Event
	seq         int64
	closed      bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		competitors: make(map[string]model.Competitor),
		contests:    make(map[string]model.ContestRecord),
		events:      make(map[string]model.Event),
	}
}

func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *MemoryStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

// ListCompetitors returns a copy of every competitor.
func (s *MemoryStore) ListCompetitors(ctx context.Context) ([]model.Competitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Competitor, 0, len(s.competitors))
	for _, c := range s.competitors {
		out = append(out, c)
	}
	return out, nil
}

// GetCompetitor returns the competitor with id.
func (s *MemoryStore) GetCompetitor(ctx context.Context, id string) (model.Competitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.Competitor{}, err
	}
	c, ok := s.competitors[id]
	if !ok {
		return model.Competitor{}, fmt.Errorf("%w: %s", model.ErrCompetitorNotFound, id)
	}
	return c, nil
}

// CreateCompetitor appends c at the bottom of the ladder.
func (s *MemoryStore) CreateCompetitor(ctx context.Context, c model.Competitor) (model.Competitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return model.Competitor{}, err
	}
	if _, exists := s.competitors[c.ID]; exists {
		return model.Competitor{}, fmt.Errorf("%w: competitor %s", ErrDuplicateID, c.ID)
	}
	bottom := len(s.competitors) + 1
	c.BaselineRank = bottom
	c.CurrentRank = bottom
	c.CreatedSeq = s.nextSeq()
	s.competitors[c.ID] = c
	return c, nil
}

// SetCompetitorActive flips the active flag without touching ranks.
func (s *MemoryStore) SetCompetitorActive(ctx context.Context, id string, active bool) (model.Competitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return model.Competitor{}, err
	}
	c, ok := s.competitors[id]
	if !ok {
		return model.Competitor{}, fmt.Errorf("%w: %s", model.ErrCompetitorNotFound, id)
	}
	c.Active = active
	s.competitors[id] = c
	return c, nil
}

// WriteCompetitorRanks overwrites CurrentRank for every listed competitor.
// Unknown ids fail the whole call before anything is written.
func (s *MemoryStore) WriteCompetitorRanks(ctx context.Context, ranks []model.RankUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.writeRanksLocked(ranks)
}

func (s *MemoryStore) writeRanksLocked(ranks []model.RankUpdate) error {
	for _, u := range ranks {
		if _, ok := s.competitors[u.CompetitorID]; !ok {
			return fmt.Errorf("%w: %s", model.ErrCompetitorNotFound, u.CompetitorID)
		}
	}
	for _, u := range ranks {
		c := s.competitors[u.CompetitorID]
		c.CurrentRank = u.CurrentRank
		s.competitors[u.CompetitorID] = c
	}
	return nil
}

// ListTimelineEvents returns a copy of every event.
func (s *MemoryStore) ListTimelineEvents(ctx context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	return out, nil
}

// GetTimelineEvent returns the event with id.
func (s *MemoryStore) GetTimelineEvent(ctx context.Context, id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.Event{}, err
	}
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("%w: %s", model.ErrEventNotFound, id)
	}
	return e, nil
}

// AppendTimelineEvent stores evt with the next creation sequence number.
func (s *MemoryStore) AppendTimelineEvent(ctx context.Context, evt model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return model.Event{}, err
	}
	if evt.Payload == nil {
		return model.Event{}, fmt.Errorf("%w: event %s has no payload", model.ErrInvalidInput, evt.ID)
	}
	if _, exists := s.events[evt.ID]; exists {
		return model.Event{}, fmt.Errorf("%w: event %s", ErrDuplicateID, evt.ID)
	}
	evt.Seq = s.nextSeq()
	s.events[evt.ID] = evt
	return evt, nil
}

// UpdateTimelineEventAudit overwrites the audit fields of one event.
func (s *MemoryStore) UpdateTimelineEventAudit(ctx context.Context, update model.AuditUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	e, ok := s.events[update.EventID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrEventNotFound, update.EventID)
	}
	e.Audit = update.Audit
	s.events[update.EventID] = e
	return nil
}

// DeleteTimelineEvent removes one event.
func (s *MemoryStore) DeleteTimelineEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("%w: %s", model.ErrEventNotFound, id)
	}
	delete(s.events, id)
	return nil
}

// GetContestRecord returns the contest with id.
func (s *MemoryStore) GetContestRecord(ctx context.Context, id string) (model.ContestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.ContestRecord{}, err
	}
	rec, ok := s.contests[id]
	if !ok {
		return model.ContestRecord{}, fmt.Errorf("%w: %s", model.ErrContestNotFound, id)
	}
	return rec, nil
}

// SaveContestRecord inserts or replaces rec.
func (s *MemoryStore) SaveContestRecord(ctx context.Context, rec model.ContestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if rec.Score.Tiebreak != nil {
		tb := *rec.Score.Tiebreak
		rec.Score.Tiebreak = &tb
	}
	s.contests[rec.ID] = rec
	return nil
}

// UpdateContestRecord replaces an existing contest record.
func (s *MemoryStore) UpdateContestRecord(ctx context.Context, rec model.ContestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, ok := s.contests[rec.ID]; !ok {
		return fmt.Errorf("%w: %s", model.ErrContestNotFound, rec.ID)
	}
	if rec.Score.Tiebreak != nil {
		tb := *rec.Score.Tiebreak
		rec.Score.Tiebreak = &tb
	}
	s.contests[rec.ID] = rec
	return nil
}

// DeleteContestRecord removes one contest record.
func (s *MemoryStore) DeleteContestRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, ok := s.contests[id]; !ok {
		return fmt.Errorf("%w: %s", model.ErrContestNotFound, id)
	}
	delete(s.contests, id)
	return nil
}

// CommitRebuild writes ranks and audits under one write lock.
func (s *MemoryStore) CommitRebuild(ctx context.Context, ranks []model.RankUpdate, audits []model.AuditUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := s.writeRanksLocked(ranks); err != nil {
		return err
	}
	for _, a := range audits {
		e, ok := s.events[a.EventID]
		if !ok {
			continue
		}
		e.Audit = a.Audit
		s.events[a.EventID] = e
	}
	return nil
}

// Close marks the store closed; later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
