package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"fintrack/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxCategoryNameLength = 50

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Category, error)
	Resolve(ctx context.Context, userID uuid.UUID, categoryID string) (*models.Category, error)
}

type CategoryService struct {
	repo   CategoryRepository
	logger *zap.Logger
}

func NewCategoryService(repo CategoryRepository, logger *zap.Logger) *CategoryService {
	return &CategoryService{
		repo:   repo,
		logger: logger,
	}
}

func (s *CategoryService) Create(ctx context.Context, userID uuid.UUID, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxCategoryNameLength {
		return nil, &models.ValidationError{Errors: []models.FieldError{
			{Field: "name", Message: "must be between 1 and 50 characters"},
		}}
	}

	category := &models.Category{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("Category created", zap.String("category_id", category.ID.String()), zap.String("user_id", userID.String()))
	return category, nil
}

func (s *CategoryService) List(ctx context.Context, userID uuid.UUID) ([]*models.Category, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Resolve is called only at commit time so categories created during an import
// session are still honoured.
func (s *CategoryService) Resolve(ctx context.Context, userID uuid.UUID, categoryID string) (*models.Category, error) {
	return s.repo.Resolve(ctx, userID, strings.TrimSpace(categoryID))
}
