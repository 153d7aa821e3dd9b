package app

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"g1-quiz-service/internal/domain"
)

// Mode selects which question source a session runs over and which
// persistence side effects fire when it finishes.
type Mode string

const (
	// ModeFresh runs a regular test over a random subset of the full bank.
	ModeFresh Mode = "fresh"
	// ModeRetry re-runs only the currently failed questions.
	ModeRetry Mode = "retry"
	// ModeTryNew runs every question never yet attempted.
	ModeTryNew Mode = "new"
)

// DefaultFreshTestSize is how many questions a fresh test draws from the bank.
const DefaultFreshTestSize = 15

// BankRepository loads the full static question bank (from cache/backing store).
type BankRepository interface {
	Bank(ctx context.Context) ([]domain.Question, error)
}

// ProgressRecorder is the slice of the persistence façade the session engine
// needs. *Progress satisfies it; tests substitute a recording fake.
type ProgressRecorder interface {
	RecordTestResult(ctx context.Context, rec domain.TestRecord)
	MergeFailed(ctx context.Context, newFails []domain.Question)
	ReplaceFailed(ctx context.Context, remaining []domain.Question)
	ReplaceCompleted(ctx context.Context, qs []domain.Question)
	RemoveNotCompleted(ctx context.Context, attempted []domain.Question)
	UpdateScoreboard(ctx context.Context, isWin bool)
	FailedQuestions(ctx context.Context) []domain.Question
	NotCompletedQuestions(ctx context.Context) []domain.Question
}

// QuizService builds quiz sessions. One engine, three configurations: the
// mode decides the source set, the subset size, and the completion writes.
type QuizService struct {
	progress  ProgressRecorder
	bank      BankRepository
	freshSize int
	logger    *zap.Logger
}

func NewQuizService(progress ProgressRecorder, bank BankRepository, freshSize int, logger *zap.Logger) *QuizService {
	if freshSize <= 0 {
		freshSize = DefaultFreshTestSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{progress: progress, bank: bank, freshSize: freshSize, logger: logger}
}

// StartSession loads the mode's question source, dedupes by ID, shuffles
// questions and options, and truncates fresh tests to the configured size.
// A session over an empty source is returned in its Empty terminal state.
func (s *QuizService) StartSession(ctx context.Context, mode Mode) (*Session, error) {
	var source []domain.Question
	switch mode {
	case ModeFresh:
		qs, err := s.bank.Bank(ctx)
		if err != nil {
			return nil, err
		}
		source = qs
	case ModeRetry:
		source = s.progress.FailedQuestions(ctx)
	case ModeTryNew:
		source = s.progress.NotCompletedQuestions(ctx)
	default:
		source = nil
	}

	source = domain.DedupeByID(source)
	questions := make([]domain.Question, len(source))
	for i, q := range source {
		questions[i] = q.Clone()
	}

	sess := &Session{
		mode:      mode,
		questions: questions,
		recorder:  s.progress,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		detach: func(fn func(context.Context)) {
			// Completion writes are fire-and-forget: the Finished transition
			// never waits on the store, and failures are only logged.
			go fn(context.Background())
		},
	}
	sess.shuffle()
	if mode == ModeFresh && len(sess.questions) > s.freshSize {
		sess.questions = sess.questions[:s.freshSize]
	}
	s.logger.Debug("session started",
		zap.String("mode", string(mode)),
		zap.Int("questions", len(sess.questions)))
	return sess, nil
}

// SelectResult is the immediate outcome of answering the current question.
type SelectResult struct {
	Correct       bool
	CorrectAnswer string
	Score         int
	Last          bool
}

// Summary describes a finished session.
type Summary struct {
	Score            int
	Total            int
	CorrectQuestions []domain.Question
	WrongQuestions   []domain.Question
}

// Session is one in-memory run of the quiz engine, from load to
// finish/restart. It is confined to a single goroutine (one per
// connection); it carries no locking.
type Session struct {
	mode      Mode
	questions []domain.Question
	current   int
	answered  bool
	score     int
	finished  bool
	recorder  ProgressRecorder
	rnd       *rand.Rand
	detach    func(func(context.Context))
}

// Empty reports the terminal state entered when the source set had no
// questions (nothing failed to retry, or every question already attempted).
func (s *Session) Empty() bool { return len(s.questions) == 0 }

// Mode returns the session's configuration.
func (s *Session) Mode() Mode { return s.mode }

// Len returns the number of questions in this session.
func (s *Session) Len() int { return len(s.questions) }

// Index returns the zero-based position of the current question.
func (s *Session) Index() int { return s.current }

// Score returns the running count of correct answers.
func (s *Session) Score() int { return s.score }

// Finished reports whether the session has completed.
func (s *Session) Finished() bool { return s.finished }

// Current returns the question at the cursor.
func (s *Session) Current() domain.Question {
	return s.questions[s.current]
}

// Select records the answer for the current question and scores it. The
// state transition is immediate; any presentation delay before advancing is
// the caller's concern.
func (s *Session) Select(answer string) (SelectResult, error) {
	if s.finished {
		return SelectResult{}, domain.ErrSessionFinished
	}
	if s.Empty() {
		return SelectResult{}, domain.ErrSessionFinished
	}
	if s.answered {
		return SelectResult{}, domain.ErrAlreadyAnswered
	}

	q := &s.questions[s.current]
	q.UserSelected = answer
	s.answered = true
	if q.Correct() {
		s.score++
	}
	return SelectResult{
		Correct:       q.Correct(),
		CorrectAnswer: q.Answer,
		Score:         s.score,
		Last:          s.current+1 == len(s.questions),
	}, nil
}

// Advance moves to the next question after a selection has been recorded.
func (s *Session) Advance() (domain.Question, error) {
	if s.finished {
		return domain.Question{}, domain.ErrSessionFinished
	}
	if !s.answered {
		return domain.Question{}, domain.ErrNoSelection
	}
	if s.current+1 >= len(s.questions) {
		return domain.Question{}, domain.ErrSessionFinished
	}
	s.current++
	s.answered = false
	return s.Current(), nil
}

// Finish partitions the attempted questions into passed and failed, enters
// the Finished state, and fires the mode's persistence side effects on a
// detached task. The summary is available immediately; the writes are not
// awaited.
func (s *Session) Finish() Summary {
	s.finished = true

	// The snapshots handed to the detached writes must not alias the
	// session's slices: a restart re-shuffles them while the writes may
	// still be reading.
	passed := make([]domain.Question, 0, len(s.questions))
	failed := make([]domain.Question, 0)
	attempted := make([]domain.Question, len(s.questions))
	for i, q := range s.questions {
		c := q.Clone()
		attempted[i] = c
		if c.Correct() {
			passed = append(passed, c)
		} else {
			failed = append(failed, c)
		}
	}
	summary := Summary{
		Score:            s.score,
		Total:            len(s.questions),
		CorrectQuestions: passed,
		WrongQuestions:   failed,
	}

	s.detach(func(ctx context.Context) {
		s.persist(ctx, summary, attempted)
	})
	return summary
}

func (s *Session) persist(ctx context.Context, sum Summary, attempted []domain.Question) {
	switch s.mode {
	case ModeFresh:
		s.recorder.RecordTestResult(ctx, domain.TestRecord{
			Score:            sum.Score,
			Total:            sum.Total,
			CorrectQuestions: sum.CorrectQuestions,
			WrongQuestions:   sum.WrongQuestions,
		})
		s.recorder.MergeFailed(ctx, sum.WrongQuestions)
		s.recorder.UpdateScoreboard(ctx, sum.Score == sum.Total)
		s.recorder.RemoveNotCompleted(ctx, attempted)
	case ModeRetry:
		if len(sum.CorrectQuestions) > 0 {
			s.recorder.ReplaceCompleted(ctx, sum.CorrectQuestions)
		}
		s.recorder.ReplaceFailed(ctx, sum.WrongQuestions)
	case ModeTryNew:
		s.recorder.ReplaceCompleted(ctx, sum.CorrectQuestions)
		s.recorder.MergeFailed(ctx, sum.WrongQuestions)
		s.recorder.RemoveNotCompleted(ctx, attempted)
	}
}

// Restart re-shuffles the same in-memory questions and resets all progress.
// It does not reload from the store.
func (s *Session) Restart() domain.Question {
	s.current = 0
	s.answered = false
	s.score = 0
	s.finished = false
	for i := range s.questions {
		s.questions[i].UserSelected = ""
	}
	s.shuffle()
	if s.Empty() {
		return domain.Question{}
	}
	return s.Current()
}

func (s *Session) shuffle() {
	s.rnd.Shuffle(len(s.questions), func(i, j int) {
		s.questions[i], s.questions[j] = s.questions[j], s.questions[i]
	})
	for i := range s.questions {
		opts := s.questions[i].Options
		s.rnd.Shuffle(len(opts), func(a, b int) {
			opts[a], opts[b] = opts[b], opts[a]
		})
	}
}
