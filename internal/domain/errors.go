package domain

import "errors"

var (
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrDocumentNotFound is returned by stores when a document is absent.
	// The persistence layer translates it into a zero default, never an error.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrSessionFinished is returned when answers arrive after the last question.
	ErrSessionFinished = errors.New("quiz session already finished")
	// ErrAlreadyAnswered is returned on a second selection for the same question.
	ErrAlreadyAnswered = errors.New("current question already answered")
	// ErrNoSelection is returned when advancing without a recorded answer.
	ErrNoSelection = errors.New("no answer selected for current question")
)
