package dto

import (
	"time"

	"fintrack/internal/models"
)

// DraftRequest is the body of both PATCH and PUT on a draft. PATCH applies the
// fields present; PUT clears the fields left out.
type DraftRequest struct {
	Type       *string `json:"type"`
	Amount     *string `json:"amount"`
	Currency   *string `json:"currency"`
	OccurredAt *string `json:"occurred_at"`
	CategoryID *string `json:"category_id"`
	Merchant   *string `json:"merchant"`
	Notes      *string `json:"notes"`
}

type DraftResponse struct {
	Index      int     `json:"index"`
	Type       string  `json:"type"`
	Amount     *string `json:"amount"`
	Currency   string  `json:"currency"`
	OccurredAt *string `json:"occurred_at"`
	CategoryID *string `json:"category_id"`
	Merchant   *string `json:"merchant"`
	Notes      *string `json:"notes"`
	Edited     bool    `json:"edited"`
}

type UploadResponse struct {
	JobID     string          `json:"job_id"`
	Status    string          `json:"status"`
	Kind      string          `json:"kind"`
	Preview   []DraftResponse `json:"preview"`
	TotalRows int             `json:"total_rows"`
}

type CommitResponse struct {
	JobID       string              `json:"job_id"`
	Inserted    int                 `json:"inserted"`
	Skipped     int                 `json:"skipped"`
	Errors      []models.DraftError `json:"errors"`
	CommittedAt string              `json:"committed_at"`
}

type ImportJobResponse struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
	FileName     string          `json:"file_name"`
	MimeType     string          `json:"mime_type"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Drafts       []DraftResponse `json:"drafts"`
	CreatedAt    string          `json:"created_at"`
	CommittedAt  *string         `json:"committed_at"`
	Result       *CommitResponse `json:"result"`
}

type ImportJobListResponse struct {
	Items  []ImportJobResponse `json:"items"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

func NewDraftResponse(index int, d models.Draft) DraftResponse {
	resp := DraftResponse{
		Index:      index,
		Type:       string(d.Type),
		Currency:   d.Currency,
		CategoryID: d.CategoryID,
		Merchant:   d.Merchant,
		Notes:      d.Notes,
		Edited:     d.Edited,
	}
	if d.Amount != nil {
		amount := d.Amount.StringFixed(2)
		resp.Amount = &amount
	}
	if d.OccurredAt != nil {
		ts := d.OccurredAt.Format(time.RFC3339)
		resp.OccurredAt = &ts
	}
	return resp
}

func NewUploadResponse(job *models.ImportJob, previewRows int) UploadResponse {
	preview := job.Drafts
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}
	resp := UploadResponse{
		JobID:     job.ID.String(),
		Status:    string(job.Status),
		Kind:      string(job.Kind),
		Preview:   make([]DraftResponse, 0, len(preview)),
		TotalRows: len(job.Drafts),
	}
	for i, d := range preview {
		resp.Preview = append(resp.Preview, NewDraftResponse(i, d))
	}
	return resp
}

func NewCommitResponse(jobID string, r *models.CommitResult) CommitResponse {
	errs := r.Errors
	if errs == nil {
		errs = []models.DraftError{}
	}
	return CommitResponse{
		JobID:       jobID,
		Inserted:    r.Inserted,
		Skipped:     r.Skipped,
		Errors:      errs,
		CommittedAt: r.CommittedAt.Format(time.RFC3339Nano),
	}
}

func NewImportJobResponse(job *models.ImportJob) ImportJobResponse {
	resp := ImportJobResponse{
		ID:           job.ID.String(),
		Kind:         string(job.Kind),
		Status:       string(job.Status),
		FileName:     job.FileName,
		MimeType:     job.MimeType,
		ErrorMessage: job.ErrorMessage,
		Drafts:       make([]DraftResponse, 0, len(job.Drafts)),
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
	}
	for i, d := range job.Drafts {
		resp.Drafts = append(resp.Drafts, NewDraftResponse(i, d))
	}
	if job.CommittedAt != nil {
		ts := job.CommittedAt.Format(time.RFC3339Nano)
		resp.CommittedAt = &ts
	}
	if job.Result != nil {
		result := NewCommitResponse(resp.ID, job.Result)
		resp.Result = &result
	}
	return resp
}
