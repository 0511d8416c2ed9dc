package domain

import "errors"

// ErrQuestionnaireNotFound is returned when a loader has no questionnaire for an id.
var ErrQuestionnaireNotFound = errors.New("questionnaire not found")

// ErrResponseNotFound is returned when a response store has no document for an id.
var ErrResponseNotFound = errors.New("response not found")

// ErrSessionNotFound is returned when a session ID cannot be found.
var ErrSessionNotFound = errors.New("session not found")

// ErrDisposed is returned by commands issued against a disposed form.
var ErrDisposed = errors.New("form disposed")

// ErrNodeNotFound is returned when no node matches a linkId or key.
var ErrNodeNotFound = errors.New("node not found")

// ErrNotQuestion is returned when a node expected to be a question is not one.
var ErrNotQuestion = errors.New("node is not a question")
