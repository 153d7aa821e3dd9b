// Package bank holds the static driving-test question bank bundled with the
// binary. The bank is read-only; sessions and the seeding routine work on
// copies.
package bank

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"g1-quiz-service/internal/domain"
)

//go:embed questions.json
var questionsJSON []byte

// Load parses and validates the embedded question bank.
func Load() ([]domain.Question, error) {
	var qs []domain.Question
	if err := json.Unmarshal(questionsJSON, &qs); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if err := Validate(qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// MustLoad is for wiring paths where a broken embedded bank is a build defect.
func MustLoad() []domain.Question {
	qs, err := Load()
	if err != nil {
		panic(err)
	}
	return qs
}

// Validate checks the structural invariants of a question list: unique IDs,
// at least two options per question, and an answer that matches exactly one
// option.
func Validate(qs []domain.Question) error {
	seen := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		if q.ID == "" {
			return fmt.Errorf("question %q: empty id", q.Question)
		}
		if _, ok := seen[q.ID]; ok {
			return fmt.Errorf("question %s: duplicate id", q.ID)
		}
		seen[q.ID] = struct{}{}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %s: needs at least 2 options, has %d", q.ID, len(q.Options))
		}
		matches := 0
		for _, opt := range q.Options {
			if opt == q.Answer {
				matches++
			}
		}
		if matches != 1 {
			return fmt.Errorf("question %s: answer must equal exactly one option, matches %d", q.ID, matches)
		}
	}
	return nil
}
