package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"g1-quiz-service/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressStore, used in
// tests and when no Redis is configured. Documents are deep-copied on the
// way in and out so callers never share slices with the store.
type ProgressStore struct {
	clock func() time.Time

	mu          sync.RWMutex
	scoreboard  *domain.Scoreboard
	sets        map[domain.SetName][]domain.Question
	records     []domain.TestRecord
	nextID      int
	subscribers map[chan domain.Scoreboard]struct{}
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		clock:       time.Now,
		sets:        make(map[domain.SetName][]domain.Question),
		subscribers: make(map[chan domain.Scoreboard]struct{}),
	}
}

// NewProgressStoreWithClock allows deterministic record timestamps in tests.
func NewProgressStoreWithClock(clock func() time.Time) *ProgressStore {
	s := NewProgressStore()
	s.clock = clock
	return s
}

func (s *ProgressStore) Scoreboard(_ context.Context) (domain.Scoreboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scoreboard == nil {
		return domain.Scoreboard{}, domain.ErrDocumentNotFound
	}
	return *s.scoreboard, nil
}

func (s *ProgressStore) PutScoreboard(_ context.Context, sb domain.Scoreboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoreboard = &sb
	s.broadcastLocked(sb)
	return nil
}

func (s *ProgressStore) Questions(_ context.Context, set domain.SetName) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qs, ok := s.sets[set]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return copyQuestions(qs), nil
}

func (s *ProgressStore) PutQuestions(_ context.Context, set domain.SetName, qs []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[set] = copyQuestions(qs)
	return nil
}

func (s *ProgressStore) AppendTestRecord(_ context.Context, rec domain.TestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = fmt.Sprintf("test-%d", s.nextID)
	rec.Timestamp = s.clock()
	s.records = append(s.records, copyRecord(rec))
	return nil
}

func (s *ProgressStore) TestRecords(_ context.Context) ([]domain.TestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TestRecord, len(s.records))
	for i, rec := range s.records {
		out[i] = copyRecord(rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *ProgressStore) ClearTestRecords(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

// WatchScoreboard registers a listener that receives the current snapshot
// and every subsequent write. stop tears the listener down; it is safe to
// call more than once.
func (s *ProgressStore) WatchScoreboard(_ context.Context) (<-chan domain.Scoreboard, func(), error) {
	ch := make(chan domain.Scoreboard, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	var initial domain.Scoreboard
	if s.scoreboard != nil {
		initial = *s.scoreboard
	}
	s.mu.Unlock()

	ch <- initial

	stop := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, stop, nil
}

func (s *ProgressStore) broadcastLocked(sb domain.Scoreboard) {
	for ch := range s.subscribers {
		select {
		case ch <- sb:
		default:
			// Drop the stale update so a slow listener never blocks writes.
			select {
			case <-ch:
			default:
			}
			ch <- sb
		}
	}
}

func copyRecord(rec domain.TestRecord) domain.TestRecord {
	rec.CorrectQuestions = copyQuestions(rec.CorrectQuestions)
	rec.WrongQuestions = copyQuestions(rec.WrongQuestions)
	return rec
}

func copyQuestions(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}
