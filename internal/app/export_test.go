package app

import (
	"context"
	"math/rand"

	"g1-quiz-service/internal/domain"
)

// NewInlineSession builds a session whose completion writes run inline, so
// tests assert side effects without synchronization.
func NewInlineSession(mode Mode, qs []domain.Question, rec ProgressRecorder) *Session {
	questions := make([]domain.Question, len(qs))
	for i, q := range qs {
		questions[i] = q.Clone()
	}
	return &Session{
		mode:      mode,
		questions: questions,
		recorder:  rec,
		rnd:       rand.New(rand.NewSource(1)),
		detach: func(fn func(context.Context)) {
			fn(context.Background())
		},
	}
}

// QuestionsSnapshot exposes the session's working set for assertions.
func (s *Session) QuestionsSnapshot() []domain.Question {
	return append([]domain.Question(nil), s.questions...)
}
