package apperrors

import "errors"

// ErrValidation indicates that user input failed a format or range check.
var ErrValidation = errors.New("validation error")

// ErrNotFound indicates that a requested row, sheet or material does not exist.
var ErrNotFound = errors.New("resource not found")

// ErrIntegrity indicates that a write would break a stock invariant.
var ErrIntegrity = errors.New("integrity violation")

// ErrCollaborator indicates that an external collaborator (tabular store,
// cache, chat gateway) was unreachable or answered with a failure.
var ErrCollaborator = errors.New("collaborator failure")
