package dto

import (
	"time"

	"fintrack/internal/models"
)

type TransactionResponse struct {
	ID          string  `json:"id"`
	ImportJobID *string `json:"import_job_id"`
	Type        string  `json:"type"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	CategoryID  *string `json:"category_id"`
	Merchant    *string `json:"merchant"`
	Notes       *string `json:"notes"`
	OccurredAt  string  `json:"occurred_at"`
	CreatedAt   string  `json:"created_at"`
}

type TransactionListResponse struct {
	Items    []TransactionResponse `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

func NewTransactionResponse(tx *models.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:         tx.ID.String(),
		Type:       string(tx.Type),
		Amount:     tx.Amount.StringFixed(2),
		Currency:   tx.Currency,
		Merchant:   tx.Merchant,
		Notes:      tx.Notes,
		OccurredAt: tx.OccurredAt.Format(time.RFC3339),
		CreatedAt:  tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.ImportJobID != nil {
		id := tx.ImportJobID.String()
		resp.ImportJobID = &id
	}
	if tx.CategoryID != nil {
		id := tx.CategoryID.String()
		resp.CategoryID = &id
	}
	return resp
}
