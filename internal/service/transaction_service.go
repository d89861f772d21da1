package service

import (
	"context"
	"fmt"

	"fintrack/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, int, error)
}

// TransactionService is the ledger. It checks shape only; business rules are
// applied before anything reaches it.
type TransactionService struct {
	repo   TransactionRepository
	logger *zap.Logger
}

func NewTransactionService(repo TransactionRepository, logger *zap.Logger) *TransactionService {
	return &TransactionService{
		repo:   repo,
		logger: logger,
	}
}

func (s *TransactionService) Insert(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	var errs []models.FieldError
	if tx.UserID == uuid.Nil {
		errs = append(errs, models.FieldError{Field: "user_id", Message: "is required"})
	}
	if !tx.Type.Valid() {
		errs = append(errs, models.FieldError{Field: "type", Message: "must be income or expense"})
	}
	if tx.Amount.IsNegative() {
		errs = append(errs, models.FieldError{Field: "amount", Message: "must not be negative"})
	}
	if tx.Amount.GreaterThanOrEqual(maxAmount) {
		errs = append(errs, models.FieldError{Field: "amount", Message: "is too large"})
	}
	if !currencyCodePattern.MatchString(tx.Currency) {
		errs = append(errs, models.FieldError{Field: "currency", Message: "must be a three-letter currency code"})
	}
	if tx.OccurredAt.IsZero() {
		errs = append(errs, models.FieldError{Field: "occurred_at", Message: "is required"})
	}
	if len(errs) > 0 {
		return nil, &models.ValidationError{Errors: errs}
	}

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return tx, nil
}

// Page is one page of the ledger listing.
type Page struct {
	Items    []*models.Transaction
	Total    int
	Page     int
	PageSize int
}

func (s *TransactionService) List(ctx context.Context, userID uuid.UUID, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := s.repo.ListByUser(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}
