package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the staging store, repositories and services.
var (
	ErrUnprocessableDocument = errors.New("unprocessable document")
	ErrUnsupportedMedia      = fmt.Errorf("%w: unsupported media type", ErrUnprocessableDocument)
	ErrJobNotFound           = errors.New("import job not found")
	ErrDraftNotFound         = errors.New("draft not found")
	ErrJobNotEditable        = errors.New("import job is not editable")
	ErrJobNotCommittable     = errors.New("import job is not committable")
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCommitInProgress      = errors.New("commit in progress")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrValidation            = errors.New("validation error")

	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCategoryExists     = errors.New("category already exists")
	ErrTransactionExists  = errors.New("transaction already exists")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of a single request.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
