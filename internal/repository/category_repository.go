package repository

import (
	"context"
	"errors"

	"fintrack/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var categoryColumns = []string{"id", "user_id", "name", "created_at"}

type CategoryRepository struct {
	db     DB
	logger *zap.Logger
}

func NewCategoryRepository(db DB, logger *zap.Logger) *CategoryRepository {
	return &CategoryRepository{
		db:     db,
		logger: logger,
	}
}

func (r *CategoryRepository) Create(ctx context.Context, category *models.Category) error {
	sql, args, err := psql.Insert("categories").
		Columns(categoryColumns...).
		Values(category.ID, category.UserID, category.Name, category.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return models.ErrCategoryExists
		}
		return err
	}
	return nil
}

func (r *CategoryRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Category, error) {
	sql, args, err := psql.Select(categoryColumns...).
		From("categories").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, &c)
	}

	return categories, rows.Err()
}

// Resolve looks up a category owned by userID. Category references on drafts are
// free-form, so anything that is not a uuid simply does not exist.
func (r *CategoryRepository) Resolve(ctx context.Context, userID uuid.UUID, categoryID string) (*models.Category, error) {
	id, err := uuid.Parse(categoryID)
	if err != nil {
		return nil, models.ErrCategoryNotFound
	}

	sql, args, err := psql.Select(categoryColumns...).
		From("categories").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var c models.Category
	err = r.db.QueryRow(ctx, sql, args...).Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}
