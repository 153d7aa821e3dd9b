package domain

import "time"

// Question models one MCQ from the driving-test bank. Answer always equals
// exactly one element of Options. UserSelected is empty on bank copies and
// is set on the session's copy once the user picks an option; it travels
// with the question into failed-set and history snapshots.
type Question struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	Answer       string   `json:"answer"`
	UserSelected string   `json:"userSelected,omitempty"`
}

// Correct reports whether the recorded selection matches the answer.
// Comparison is exact, not case-insensitive.
func (q Question) Correct() bool {
	return q.UserSelected == q.Answer
}

// Clone returns a copy with its own options slice, so session shuffles
// never touch the bank's copy.
func (q Question) Clone() Question {
	out := q
	out.Options = append([]string(nil), q.Options...)
	return out
}

// SetName identifies one of the three persisted question-state documents.
type SetName string

const (
	SetNotCompleted SetName = "notCompleted"
	SetFailed       SetName = "failed"
	SetCompleted    SetName = "completed"
)

// Scoreboard is the singleton attempt/win/loss aggregate at scoreboard/stats.
// It is created implicitly on first write and zeroed on reset.
type Scoreboard struct {
	Attempts int `json:"attempts"`
	Wins     int `json:"wins"`
	Losses   int `json:"losses"`
}

// TestRecord is an immutable entry in the tests collection, one per
// finished fresh test. Timestamp is assigned by the store on append.
type TestRecord struct {
	ID               string     `json:"id,omitempty"`
	Timestamp        time.Time  `json:"timestamp"`
	Score            int        `json:"score"`
	Total            int        `json:"total"`
	CorrectCount     int        `json:"correctCount"`
	WrongCount       int        `json:"wrongCount"`
	CorrectQuestions []Question `json:"correctQuestions"`
	WrongQuestions   []Question `json:"wrongQuestions"`
}

// DedupeByID keeps the first occurrence of every question ID.
func DedupeByID(qs []Question) []Question {
	seen := make(map[string]struct{}, len(qs))
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		if _, ok := seen[q.ID]; ok {
			continue
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out
}
