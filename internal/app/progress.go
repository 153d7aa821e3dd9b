package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"g1-quiz-service/internal/domain"
)

// ProgressStore abstracts the remote document store holding quiz progress
// (in-memory, Redis, etc). Absent documents surface as
// domain.ErrDocumentNotFound, everything else is a remote-I/O failure.
type ProgressStore interface {
	Scoreboard(ctx context.Context) (domain.Scoreboard, error)
	PutScoreboard(ctx context.Context, sb domain.Scoreboard) error
	Questions(ctx context.Context, set domain.SetName) ([]domain.Question, error)
	PutQuestions(ctx context.Context, set domain.SetName, qs []domain.Question) error
	AppendTestRecord(ctx context.Context, rec domain.TestRecord) error
	TestRecords(ctx context.Context) ([]domain.TestRecord, error)
	ClearTestRecords(ctx context.Context) error
	WatchScoreboard(ctx context.Context) (<-chan domain.Scoreboard, func(), error)
}

// Progress is the sole authority over the persisted quiz-progress documents:
// the scoreboard, the three question-state sets, and the test-history
// collection. All writes are last-write-wins; the read-modify-write
// sequences (UpdateScoreboard, MergeFailed, RemoveNotCompleted) assume a
// single active device and can lose updates under true concurrency.
//
// Every operation swallows store failures: it reports them to the injected
// logger and resolves with a safe default (zero scoreboard, empty list,
// no-op write). Callers never see a remote-I/O error.
type Progress struct {
	store  ProgressStore
	logger *zap.Logger
}

func NewProgress(store ProgressStore, logger *zap.Logger) *Progress {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Progress{store: store, logger: logger}
}

// Scoreboard returns the stored scoreboard, or the zero value when the
// document is absent or the read fails.
func (p *Progress) Scoreboard(ctx context.Context) domain.Scoreboard {
	sb, err := p.store.Scoreboard(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			p.logger.Error("load scoreboard", zap.Error(err))
		}
		return domain.Scoreboard{}
	}
	return sb
}

// UpdateScoreboard bumps attempts and either wins or losses, then writes the
// full replacement document.
func (p *Progress) UpdateScoreboard(ctx context.Context, isWin bool) {
	sb := p.Scoreboard(ctx)
	sb.Attempts++
	if isWin {
		sb.Wins++
	} else {
		sb.Losses++
	}
	if err := p.store.PutScoreboard(ctx, sb); err != nil {
		p.logger.Error("update scoreboard", zap.Bool("win", isWin), zap.Error(err))
	}
}

// ResetScoreboard overwrites the scoreboard with zeros.
func (p *Progress) ResetScoreboard(ctx context.Context) {
	if err := p.store.PutScoreboard(ctx, domain.Scoreboard{}); err != nil {
		p.logger.Error("reset scoreboard", zap.Error(err))
	}
}

// WatchScoreboard subscribes to scoreboard changes. The channel carries an
// initial snapshot followed by every remote update; the caller must invoke
// stop when done to avoid leaking the listener.
func (p *Progress) WatchScoreboard(ctx context.Context) (<-chan domain.Scoreboard, func(), error) {
	return p.store.WatchScoreboard(ctx)
}

// RecordTestResult appends one history entry. The store assigns the ordering
// timestamp; correct/wrong counts are derived from the snapshots here.
func (p *Progress) RecordTestResult(ctx context.Context, rec domain.TestRecord) {
	rec.CorrectCount = len(rec.CorrectQuestions)
	rec.WrongCount = len(rec.WrongQuestions)
	if err := p.store.AppendTestRecord(ctx, rec); err != nil {
		p.logger.Error("record test result", zap.Int("score", rec.Score), zap.Error(err))
	}
}

// TestHistory returns all history entries, newest first, or an empty slice
// when the collection is missing or unreadable.
func (p *Progress) TestHistory(ctx context.Context) []domain.TestRecord {
	recs, err := p.store.TestRecords(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			p.logger.Error("load test history", zap.Error(err))
		}
		return []domain.TestRecord{}
	}
	return recs
}

// ClearTestHistory deletes every history entry. Deletion is best-effort and
// not transactional: a partial failure leaves a subset deleted.
func (p *Progress) ClearTestHistory(ctx context.Context) {
	if err := p.store.ClearTestRecords(ctx); err != nil {
		p.logger.Error("clear test history", zap.Error(err))
	}
}

// MergeFailed appends each new failure whose ID is not already stored. The
// first-seen copy of an already-failed question is kept as-is, stale
// UserSelected included; the latest attempt does not overwrite it.
func (p *Progress) MergeFailed(ctx context.Context, newFails []domain.Question) {
	if len(newFails) == 0 {
		return
	}
	existing := p.questions(ctx, domain.SetFailed)
	present := make(map[string]struct{}, len(existing))
	for _, q := range existing {
		present[q.ID] = struct{}{}
	}
	merged := existing
	for _, q := range newFails {
		if _, ok := present[q.ID]; ok {
			continue
		}
		present[q.ID] = struct{}{}
		merged = append(merged, q)
	}
	if err := p.store.PutQuestions(ctx, domain.SetFailed, merged); err != nil {
		p.logger.Error("merge failed questions", zap.Int("new", len(newFails)), zap.Error(err))
	}
}

// FailedQuestions returns the stored failed set or empty.
func (p *Progress) FailedQuestions(ctx context.Context) []domain.Question {
	return p.questions(ctx, domain.SetFailed)
}

// ReplaceFailed overwrites the entire failed set with exactly the given
// questions. Used after a retry run; this is deliberately not a merge.
func (p *Progress) ReplaceFailed(ctx context.Context, remaining []domain.Question) {
	p.putQuestions(ctx, domain.SetFailed, remaining)
}

// ReplaceCompleted overwrites the completed set. Unlike MergeFailed this is
// not a merge; the asymmetry is inherited behavior, kept explicit in the name.
func (p *Progress) ReplaceCompleted(ctx context.Context, qs []domain.Question) {
	p.putQuestions(ctx, domain.SetCompleted, qs)
}

// ClearCompleted empties the completed set.
func (p *Progress) ClearCompleted(ctx context.Context) {
	p.putQuestions(ctx, domain.SetCompleted, []domain.Question{})
}

// CompletedQuestions returns the stored completed set or empty.
func (p *Progress) CompletedQuestions(ctx context.Context) []domain.Question {
	return p.questions(ctx, domain.SetCompleted)
}

// NotCompletedQuestions returns the stored not-completed set or empty.
func (p *Progress) NotCompletedQuestions(ctx context.Context) []domain.Question {
	return p.questions(ctx, domain.SetNotCompleted)
}

// ReplaceNotCompleted overwrites the not-completed set.
func (p *Progress) ReplaceNotCompleted(ctx context.Context, qs []domain.Question) {
	p.putQuestions(ctx, domain.SetNotCompleted, qs)
}

// RemoveNotCompleted drops every stored not-completed question whose ID
// appears in the attempted list. Order of the remainder is not significant.
func (p *Progress) RemoveNotCompleted(ctx context.Context, attempted []domain.Question) {
	if len(attempted) == 0 {
		return
	}
	attemptedIDs := make(map[string]struct{}, len(attempted))
	for _, q := range attempted {
		attemptedIDs[q.ID] = struct{}{}
	}
	existing := p.questions(ctx, domain.SetNotCompleted)
	remaining := make([]domain.Question, 0, len(existing))
	for _, q := range existing {
		if _, ok := attemptedIDs[q.ID]; ok {
			continue
		}
		remaining = append(remaining, q)
	}
	if err := p.store.PutQuestions(ctx, domain.SetNotCompleted, remaining); err != nil {
		p.logger.Error("remove attempted from not-completed", zap.Int("attempted", len(attempted)), zap.Error(err))
	}
}

// ResetNotCompleted overwrites the not-completed set with the full bank.
func (p *Progress) ResetNotCompleted(ctx context.Context, fullBank []domain.Question) {
	p.putQuestions(ctx, domain.SetNotCompleted, fullBank)
}

// SeedNotCompleted populates the not-completed set with the full bank when
// it is empty and no-ops otherwise. Two racing seeds both write the same
// bank, so the result stays correct without locking.
func (p *Progress) SeedNotCompleted(ctx context.Context, fullBank []domain.Question) {
	existing := p.questions(ctx, domain.SetNotCompleted)
	if len(existing) > 0 {
		p.logger.Debug("not-completed already seeded", zap.Int("count", len(existing)))
		return
	}
	if err := p.store.PutQuestions(ctx, domain.SetNotCompleted, fullBank); err != nil {
		p.logger.Error("seed not-completed", zap.Int("bank", len(fullBank)), zap.Error(err))
		return
	}
	p.logger.Info("seeded not-completed with full bank", zap.Int("bank", len(fullBank)))
}

func (p *Progress) questions(ctx context.Context, set domain.SetName) []domain.Question {
	qs, err := p.store.Questions(ctx, set)
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			p.logger.Error("load question set", zap.String("set", string(set)), zap.Error(err))
		}
		return []domain.Question{}
	}
	return qs
}

func (p *Progress) putQuestions(ctx context.Context, set domain.SetName, qs []domain.Question) {
	if qs == nil {
		qs = []domain.Question{}
	}
	if err := p.store.PutQuestions(ctx, set, qs); err != nil {
		p.logger.Error("write question set", zap.String("set", string(set)), zap.Int("count", len(qs)), zap.Error(err))
	}
}
