package repository

import (
	"context"

	"fintrack/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var transactionColumns = []string{
	"id", "user_id", "import_job_id", "type", "amount", "currency", "category_id", "merchant", "notes", "occurred_at", "created_at",
}

type TransactionRepository struct {
	db     DB
	logger *zap.Logger
}

func NewTransactionRepository(db DB, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	sql, args, err := psql.Insert("transactions").
		Columns(transactionColumns...).
		Values(tx.ID, tx.UserID, tx.ImportJobID, tx.Type, tx.Amount, tx.Currency, tx.CategoryID, tx.Merchant, tx.Notes, tx.OccurredAt, tx.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return models.ErrTransactionExists
		}
		return err
	}
	return nil
}

// ListByUser returns one page of the ledger, most recent first, and the total row count.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, int, error) {
	sql, args, err := psql.Select("COUNT(*)").
		From("transactions").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql, args, err = psql.Select(transactionColumns...).
		From("transactions").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("occurred_at DESC", "created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	transactions := []*models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.ImportJobID, &tx.Type, &tx.Amount, &tx.Currency, &tx.CategoryID, &tx.Merchant, &tx.Notes, &tx.OccurredAt, &tx.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		transactions = append(transactions, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}
