// Package staging holds import jobs and their drafts between upload and commit.
package staging

import (
	"context"

	"fintrack/internal/models"

	"github.com/google/uuid"
)

// DraftMutator edits a draft in place. Returning an error aborts the update and leaves
// the stored draft untouched.
type DraftMutator func(d *models.Draft) error

// Store is the single shared mutable resource of the import pipeline. Every job and
// draft mutation goes through it; the status compare-and-set is what makes commit
// at-most-once across concurrent callers.
type Store interface {
	// Create persists a new job together with its drafts.
	Create(ctx context.Context, job *models.ImportJob) error

	// Get returns a copy of the job, or models.ErrJobNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.ImportJob, error)

	// ListByUser returns the user's jobs, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.ImportJob, error)

	// CompareAndSetStatus moves the job from expected to next and reports whether this
	// call performed the transition.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next models.ImportStatus) (bool, error)

	// ReplaceDraft overwrites the draft at index while the job is parsed.
	ReplaceDraft(ctx context.Context, id uuid.UUID, index int, draft models.Draft) error

	// UpdateDraft runs fn against the current draft at index and stores the result,
	// serialised with every other mutation of the same job.
	UpdateDraft(ctx context.Context, id uuid.UUID, index int, fn DraftMutator) (models.Draft, error)

	// SaveCommitResult stamps committed_at and stores the result of a committed job.
	SaveCommitResult(ctx context.Context, id uuid.UUID, result *models.CommitResult) error
}
