package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ImportKind string

const (
	ImportKindSingleReceipt  ImportKind = "single_receipt"
	ImportKindStatementBatch ImportKind = "statement_batch"
)

func (k ImportKind) Valid() bool {
	return k == ImportKindSingleReceipt || k == ImportKindStatementBatch
}

type ImportStatus string

const (
	ImportStatusParsed    ImportStatus = "parsed"
	ImportStatusCommitted ImportStatus = "committed"
	ImportStatusFailed    ImportStatus = "failed"
)

// ImportJob is the staging record for one uploaded document.
type ImportJob struct {
	ID           uuid.UUID     `db:"id"`
	UserID       uuid.UUID     `db:"user_id"`
	Kind         ImportKind    `db:"kind"`
	Status       ImportStatus  `db:"status"`
	FileName     string        `db:"file_name"`
	MimeType     string        `db:"mime_type"`
	StorageKey   string        `db:"storage_key"`
	ErrorMessage string        `db:"error_message"`
	Drafts       []Draft       `db:"-"`
	CreatedAt    time.Time     `db:"created_at"`
	CommittedAt  *time.Time    `db:"committed_at"`
	Result       *CommitResult `db:"-"`
}

// Clone returns a deep copy so callers never share draft slices with a store.
func (j *ImportJob) Clone() *ImportJob {
	if j == nil {
		return nil
	}
	c := *j
	c.Drafts = make([]Draft, len(j.Drafts))
	for i := range j.Drafts {
		c.Drafts[i] = j.Drafts[i].Clone()
	}
	if j.CommittedAt != nil {
		t := *j.CommittedAt
		c.CommittedAt = &t
	}
	c.Result = j.Result.Clone()
	return &c
}

// Draft is one candidate transaction that has not reached the ledger yet.
// Every field except Type and Currency may be absent.
type Draft struct {
	Type       TransactionType  `db:"type"`
	Amount     *decimal.Decimal `db:"amount"`
	Currency   string           `db:"currency"`
	OccurredAt *time.Time       `db:"occurred_at"`
	CategoryID *string          `db:"category_id"`
	Merchant   *string          `db:"merchant"`
	Notes      *string          `db:"notes"`
	Edited     bool             `db:"edited"`
}

func (d Draft) Clone() Draft {
	c := d
	if d.Amount != nil {
		a := *d.Amount
		c.Amount = &a
	}
	if d.OccurredAt != nil {
		t := *d.OccurredAt
		c.OccurredAt = &t
	}
	c.CategoryID = cloneString(d.CategoryID)
	c.Merchant = cloneString(d.Merchant)
	c.Notes = cloneString(d.Notes)
	return c
}

// Eligible reports whether the draft may be written to the ledger.
func (d Draft) Eligible() bool {
	return d.Amount != nil && d.Amount.IsPositive() && d.OccurredAt != nil && !d.OccurredAt.IsZero()
}

type CommitFailureReason string

const (
	ReasonInvalidDraft      CommitFailureReason = "InvalidDraft"
	ReasonCategoryNotFound  CommitFailureReason = "CategoryNotFound"
	ReasonLedgerWriteFailed CommitFailureReason = "LedgerWriteFailed"
)

type DraftError struct {
	DraftIndex int                 `json:"draft_index"`
	Reason     CommitFailureReason `json:"reason"`
	Message    string              `json:"message"`
}

// CommitResult is stored on the job once and returned verbatim to every later commit call.
type CommitResult struct {
	Inserted    int          `json:"inserted"`
	Skipped     int          `json:"skipped"`
	Errors      []DraftError `json:"errors"`
	CommittedAt time.Time    `json:"committed_at"`
}

func (r *CommitResult) Clone() *CommitResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Errors = make([]DraftError, len(r.Errors))
	copy(c.Errors, r.Errors)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
