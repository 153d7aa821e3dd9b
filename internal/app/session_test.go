package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"g1-quiz-service/internal/app"
	"g1-quiz-service/internal/domain"
)

func TestStartSessionFreshShufflesAndTruncates(t *testing.T) {
	bank := make([]domain.Question, 0, 20)
	for i := 0; i < 20; i++ {
		bank = append(bank, testQuestion(string(rune('a'+i)), "right"))
	}
	svc := app.NewQuizService(&recorderStub{}, staticBank(bank), 15, nil)

	sess, err := svc.StartSession(context.Background(), app.ModeFresh)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if sess.Len() != 15 {
		t.Fatalf("expected fresh test truncated to 15, got %d", sess.Len())
	}
	if sess.Empty() || sess.Finished() {
		t.Fatalf("expected in-progress session")
	}
}

func TestStartSessionRetryDeduplicatesSource(t *testing.T) {
	rec := &recorderStub{
		failed: []domain.Question{
			testQuestion("1", "right"),
			testQuestion("1", "right"),
			testQuestion("2", "right"),
		},
	}
	svc := app.NewQuizService(rec, staticBank(nil), 0, nil)

	sess, err := svc.StartSession(context.Background(), app.ModeRetry)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if sess.Len() != 2 {
		t.Fatalf("expected duplicates dropped, got %d questions", sess.Len())
	}
}

func TestStartSessionEmptySource(t *testing.T) {
	svc := app.NewQuizService(&recorderStub{}, staticBank(nil), 0, nil)

	sess, err := svc.StartSession(context.Background(), app.ModeRetry)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if !sess.Empty() {
		t.Fatalf("expected empty terminal state")
	}
	if _, err := sess.Select("anything"); !errors.Is(err, domain.ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished on empty session, got %v", err)
	}
}

func TestAllCorrectSession(t *testing.T) {
	qs := []domain.Question{
		testQuestion("1", "right"),
		testQuestion("2", "right"),
		testQuestion("3", "right"),
	}
	rec := &recorderStub{}
	sess := app.NewInlineSession(app.ModeFresh, qs, rec)

	for i := 0; i < len(qs); i++ {
		result, err := sess.Select("right")
		if err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
		if !result.Correct {
			t.Fatalf("expected correct selection at %d", i)
		}
		if result.Last {
			break
		}
		if _, err := sess.Advance(); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}

	summary := sess.Finish()
	if summary.Score != 3 || summary.Total != 3 {
		t.Fatalf("expected 3/3, got %d/%d", summary.Score, summary.Total)
	}
	if len(summary.WrongQuestions) != 0 {
		t.Fatalf("expected no wrong questions, got %+v", summary.WrongQuestions)
	}
	if len(summary.CorrectQuestions) != 3 {
		t.Fatalf("expected 3 correct questions, got %d", len(summary.CorrectQuestions))
	}
}

// Three questions, the middle one missed: exercises scoring, partitioning,
// and the full fresh-test persistence sequence.
func TestFreshSessionPersistenceScenario(t *testing.T) {
	qs := []domain.Question{
		testQuestion("1", "right"),
		testQuestion("2", "right"),
		testQuestion("3", "right"),
	}
	rec := &recorderStub{}
	sess := app.NewInlineSession(app.ModeFresh, qs, rec)

	mustSelect(t, sess, "right")
	mustAdvance(t, sess)
	mustSelect(t, sess, "wrong")
	mustAdvance(t, sess)
	mustSelect(t, sess, "right")

	summary := sess.Finish()
	if summary.Score != 2 {
		t.Fatalf("expected score 2, got %d", summary.Score)
	}
	if len(summary.WrongQuestions) != 1 || summary.WrongQuestions[0].ID != "2" {
		t.Fatalf("expected q2 wrong, got %+v", summary.WrongQuestions)
	}
	if len(summary.CorrectQuestions) != 2 ||
		summary.CorrectQuestions[0].ID != "1" || summary.CorrectQuestions[1].ID != "3" {
		t.Fatalf("expected q1,q3 correct, got %+v", summary.CorrectQuestions)
	}

	if rec.record == nil {
		t.Fatalf("expected test result recorded")
	}
	if rec.record.Total != 3 || rec.record.Score != 2 {
		t.Fatalf("expected record 2/3, got %d/%d", rec.record.Score, rec.record.Total)
	}
	if len(rec.record.CorrectQuestions) != 2 || len(rec.record.WrongQuestions) != 1 {
		t.Fatalf("expected record snapshots 2 correct / 1 wrong")
	}
	if rec.scoreboardWin == nil || *rec.scoreboardWin != false {
		t.Fatalf("expected UpdateScoreboard(false), got %+v", rec.scoreboardWin)
	}
	if len(rec.merged) != 1 || rec.merged[0].ID != "2" {
		t.Fatalf("expected q2 merged into failed, got %+v", rec.merged)
	}
	if len(rec.removedNotCompleted) != 3 {
		t.Fatalf("expected all 3 attempted removed from not-completed, got %d", len(rec.removedNotCompleted))
	}
	if rec.replacedCompleted != nil || rec.replacedFailed != nil {
		t.Fatalf("fresh test must not replace completed/failed sets")
	}
}

func TestRetryPersistenceReplacesFailedSet(t *testing.T) {
	qs := []domain.Question{testQuestion("1", "right"), testQuestion("2", "right")}
	rec := &recorderStub{}
	sess := app.NewInlineSession(app.ModeRetry, qs, rec)

	mustSelect(t, sess, "right")
	mustAdvance(t, sess)
	mustSelect(t, sess, "wrong")
	sess.Finish()

	if len(rec.replacedCompleted) != 1 || rec.replacedCompleted[0].ID != "1" {
		t.Fatalf("expected passed question moved to completed, got %+v", rec.replacedCompleted)
	}
	if len(rec.replacedFailed) != 1 || rec.replacedFailed[0].ID != "2" {
		t.Fatalf("expected failed set replaced with q2, got %+v", rec.replacedFailed)
	}
	if rec.record != nil || rec.scoreboardWin != nil {
		t.Fatalf("retry must not record history or touch the scoreboard")
	}
}

func TestRetryAllWrongSkipsCompletedWrite(t *testing.T) {
	qs := []domain.Question{testQuestion("1", "right")}
	rec := &recorderStub{}
	sess := app.NewInlineSession(app.ModeRetry, qs, rec)

	mustSelect(t, sess, "wrong")
	sess.Finish()

	if rec.replacedCompletedCalled {
		t.Fatalf("expected no completed write when nothing passed")
	}
	if len(rec.replacedFailed) != 1 {
		t.Fatalf("expected failed set replaced, got %+v", rec.replacedFailed)
	}
}

func TestTryNewPersistence(t *testing.T) {
	qs := []domain.Question{testQuestion("1", "right"), testQuestion("2", "right")}
	rec := &recorderStub{}
	sess := app.NewInlineSession(app.ModeTryNew, qs, rec)

	mustSelect(t, sess, "wrong")
	mustAdvance(t, sess)
	mustSelect(t, sess, "right")
	sess.Finish()

	if len(rec.replacedCompleted) != 1 || rec.replacedCompleted[0].ID != "2" {
		t.Fatalf("expected q2 in completed, got %+v", rec.replacedCompleted)
	}
	if len(rec.merged) != 1 || rec.merged[0].ID != "1" {
		t.Fatalf("expected q1 merged into failed, got %+v", rec.merged)
	}
	if len(rec.removedNotCompleted) != 2 {
		t.Fatalf("expected both attempted removed from not-completed, got %d", len(rec.removedNotCompleted))
	}
}

func TestSelectGuards(t *testing.T) {
	qs := []domain.Question{testQuestion("1", "right"), testQuestion("2", "right")}
	sess := app.NewInlineSession(app.ModeFresh, qs, &recorderStub{})

	if _, err := sess.Advance(); !errors.Is(err, domain.ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
	mustSelect(t, sess, "right")
	if _, err := sess.Select("right"); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
	mustAdvance(t, sess)
	mustSelect(t, sess, "right")
	sess.Finish()
	if _, err := sess.Select("right"); !errors.Is(err, domain.ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}
}

func TestRestartResetsProgressWithoutReload(t *testing.T) {
	qs := []domain.Question{testQuestion("1", "right"), testQuestion("2", "right")}
	sess := app.NewInlineSession(app.ModeRetry, qs, &recorderStub{})

	mustSelect(t, sess, "right")
	mustAdvance(t, sess)
	mustSelect(t, sess, "wrong")
	sess.Finish()

	sess.Restart()
	if sess.Finished() || sess.Score() != 0 || sess.Index() != 0 {
		t.Fatalf("expected reset session, got finished=%v score=%d index=%d",
			sess.Finished(), sess.Score(), sess.Index())
	}
	if sess.Len() != 2 {
		t.Fatalf("restart must reuse the same in-memory questions, got %d", sess.Len())
	}
	for _, q := range sess.QuestionsSnapshot() {
		if q.UserSelected != "" {
			t.Fatalf("expected selections cleared on restart, got %q", q.UserSelected)
		}
	}
}

// The snapshots handed to the completion writes must survive a restart: the
// re-shuffle of the session's questions and options must not reach into the
// recorded history, failed-set, or attempted slices.
func TestFinishSnapshotsSurviveRestart(t *testing.T) {
	qs := []domain.Question{
		wideQuestion("1"),
		wideQuestion("2"),
		wideQuestion("3"),
	}
	rec := &recorderStub{}
	sess := app.NewInlineSession(app.ModeFresh, qs, rec)

	mustSelect(t, sess, "right")
	mustAdvance(t, sess)
	mustSelect(t, sess, "w1")
	mustAdvance(t, sess)
	mustSelect(t, sess, "right")
	sess.Finish()

	wantCorrect := cloneAll(rec.record.CorrectQuestions)
	wantWrong := cloneAll(rec.record.WrongQuestions)
	wantMerged := cloneAll(rec.merged)
	wantRemoved := cloneAll(rec.removedNotCompleted)

	for i := 0; i < 5; i++ {
		sess.Restart()
	}

	if !reflect.DeepEqual(rec.record.CorrectQuestions, wantCorrect) {
		t.Fatalf("restart mutated recorded correct questions:\n got %+v\nwant %+v", rec.record.CorrectQuestions, wantCorrect)
	}
	if !reflect.DeepEqual(rec.record.WrongQuestions, wantWrong) {
		t.Fatalf("restart mutated recorded wrong questions:\n got %+v\nwant %+v", rec.record.WrongQuestions, wantWrong)
	}
	if !reflect.DeepEqual(rec.merged, wantMerged) {
		t.Fatalf("restart mutated merged failed snapshot:\n got %+v\nwant %+v", rec.merged, wantMerged)
	}
	if !reflect.DeepEqual(rec.removedNotCompleted, wantRemoved) {
		t.Fatalf("restart mutated attempted snapshot:\n got %+v\nwant %+v", rec.removedNotCompleted, wantRemoved)
	}
}

func mustSelect(t *testing.T, sess *app.Session, answer string) app.SelectResult {
	t.Helper()
	result, err := sess.Select(answer)
	if err != nil {
		t.Fatalf("select %q: %v", answer, err)
	}
	return result
}

func mustAdvance(t *testing.T, sess *app.Session) {
	t.Helper()
	if _, err := sess.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
}

func testQuestion(id, answer string) domain.Question {
	return domain.Question{
		ID:       id,
		Question: "question " + id,
		Options:  []string{answer, "wrong", "also wrong"},
		Answer:   answer,
	}
}

// wideQuestion carries enough options that re-shuffling is certain to
// reorder them.
func wideQuestion(id string) domain.Question {
	return domain.Question{
		ID:       id,
		Question: "question " + id,
		Options:  []string{"right", "w1", "w2", "w3", "w4", "w5"},
		Answer:   "right",
	}
}

func cloneAll(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}

type staticBank []domain.Question

func (b staticBank) Bank(context.Context) ([]domain.Question, error) {
	if len(b) == 0 {
		return nil, domain.ErrBankNotFound
	}
	return b, nil
}

type recorderStub struct {
	failed       []domain.Question
	notCompleted []domain.Question

	record                  *domain.TestRecord
	merged                  []domain.Question
	replacedFailed          []domain.Question
	replacedCompleted       []domain.Question
	replacedCompletedCalled bool
	removedNotCompleted     []domain.Question
	scoreboardWin           *bool
}

func (r *recorderStub) RecordTestResult(_ context.Context, rec domain.TestRecord) {
	r.record = &rec
}

func (r *recorderStub) MergeFailed(_ context.Context, newFails []domain.Question) {
	r.merged = append(r.merged, newFails...)
}

func (r *recorderStub) ReplaceFailed(_ context.Context, remaining []domain.Question) {
	r.replacedFailed = remaining
}

func (r *recorderStub) ReplaceCompleted(_ context.Context, qs []domain.Question) {
	r.replacedCompletedCalled = true
	r.replacedCompleted = qs
}

func (r *recorderStub) RemoveNotCompleted(_ context.Context, attempted []domain.Question) {
	r.removedNotCompleted = attempted
}

func (r *recorderStub) UpdateScoreboard(_ context.Context, isWin bool) {
	win := isWin
	r.scoreboardWin = &win
}

func (r *recorderStub) FailedQuestions(context.Context) []domain.Question {
	return r.failed
}

func (r *recorderStub) NotCompletedQuestions(context.Context) []domain.Question {
	return r.notCompleted
}
