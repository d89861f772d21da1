package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fintrack/internal/dto"
	"fintrack/internal/models"
	"fintrack/pkg/auth"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memTransactions struct {
	mu    sync.Mutex
	items []*models.Transaction
	err   error
}

func (m *memTransactions) Create(ctx context.Context, tx *models.Transaction) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, tx)
	return nil
}

func (m *memTransactions) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []*models.Transaction
	for _, tx := range m.items {
		if tx.UserID == userID {
			mine = append(mine, tx)
		}
	}
	total := len(mine)
	if offset >= total {
		return []*models.Transaction{}, total, nil
	}
	mine = mine[offset:]
	if limit < len(mine) {
		mine = mine[:limit]
	}
	return mine, total, nil
}

func TestTransactionService_Insert(t *testing.T) {
	ctx := context.Background()
	repo := &memTransactions{}
	svc := NewTransactionService(repo, zap.NewNop())

	tx, err := svc.Insert(ctx, &models.Transaction{
		UserID:     uuid.New(),
		Type:       models.TransactionTypeExpense,
		Amount:     decimal.RequireFromString("99.50"),
		Currency:   "INR",
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tx.ID)
	assert.Len(t, repo.items, 1)

	_, err = svc.Insert(ctx, &models.Transaction{
		Type:     "gift",
		Amount:   decimal.RequireFromString("-1"),
		Currency: "rupees",
	})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 5)
	assert.Len(t, repo.items, 1)

	_, err = svc.Insert(ctx, &models.Transaction{
		UserID:     uuid.New(),
		Type:       models.TransactionTypeIncome,
		Amount:     decimal.RequireFromString("1000000000000"),
		Currency:   "INR",
		OccurredAt: time.Now(),
	})
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "amount", verr.Errors[0].Field)

	repo.err = models.ErrTransactionExists
	_, err = svc.Insert(ctx, tx)
	assert.ErrorIs(t, err, models.ErrTransactionExists)
}

func TestTransactionService_List(t *testing.T) {
	ctx := context.Background()
	repo := &memTransactions{}
	svc := NewTransactionService(repo, zap.NewNop())
	userID := uuid.New()
	for i := 0; i < 25; i++ {
		_, err := svc.Insert(ctx, &models.Transaction{
			UserID:     userID,
			Type:       models.TransactionTypeIncome,
			Amount:     decimal.NewFromInt(int64(i + 1)),
			Currency:   "INR",
			OccurredAt: time.Now(),
		})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, userID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 20, page.PageSize)
	assert.Len(t, page.Items, 5)

	page, err = svc.List(ctx, userID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Items, 10)
}

type memCategories struct {
	items []*models.Category
}

func (m *memCategories) Create(ctx context.Context, c *models.Category) error {
	for _, existing := range m.items {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			return models.ErrCategoryExists
		}
	}
	m.items = append(m.items, c)
	return nil
}

func (m *memCategories) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Category, error) {
	out := []*models.Category{}
	for _, c := range m.items {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCategories) Resolve(ctx context.Context, userID uuid.UUID, categoryID string) (*models.Category, error) {
	for _, c := range m.items {
		if c.UserID == userID && c.ID.String() == categoryID {
			return c, nil
		}
	}
	return nil, models.ErrCategoryNotFound
}

func TestCategoryService(t *testing.T) {
	ctx := context.Background()
	svc := NewCategoryService(&memCategories{}, zap.NewNop())
	userID := uuid.New()

	c, err := svc.Create(ctx, userID, "  Groceries ")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", c.Name)

	_, err = svc.Create(ctx, userID, "Groceries")
	assert.ErrorIs(t, err, models.ErrCategoryExists)

	_, err = svc.Create(ctx, userID, " ")
	assert.ErrorIs(t, err, models.ErrValidation)

	found, err := svc.Resolve(ctx, userID, " "+c.ID.String()+" ")
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)

	_, err = svc.Resolve(ctx, uuid.New(), c.ID.String())
	assert.ErrorIs(t, err, models.ErrCategoryNotFound)

	list, err := svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

type memUsers struct {
	byID map[uuid.UUID]*models.User
}

func (m *memUsers) Create(ctx context.Context, u *models.User) error {
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return models.ErrUserAlreadyExists
		}
	}
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, models.ErrUserNotFound
}

func TestAuthService(t *testing.T) {
	ctx := context.Background()
	jwt := auth.NewJWTManager("test-secret", time.Hour, 24*time.Hour)
	svc := NewAuthService(&memUsers{byID: map[uuid.UUID]*models.User{}}, jwt, zap.NewNop())

	registered, err := svc.Register(ctx, &dto.RegisterRequest{
		Username: "asha",
		Email:    "Asha@Example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", registered.User.Email)
	assert.Equal(t, "Bearer", registered.TokenType)
	assert.Equal(t, int64(3600), registered.ExpiresIn)

	_, err = svc.Register(ctx, &dto.RegisterRequest{Username: "asha2", Email: "asha@example.com", Password: "another one"})
	assert.ErrorIs(t, err, models.ErrUserAlreadyExists)

	_, err = svc.Register(ctx, &dto.RegisterRequest{Username: "", Email: "nope", Password: "short"})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 3)

	loggedIn, err := svc.Login(ctx, &dto.LoginRequest{Email: "asha@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "asha@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "ghost@example.com", Password: "whatever"})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	refreshed, err := svc.RefreshToken(ctx, loggedIn.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, refreshed.User.ID)

	_, err = svc.RefreshToken(ctx, loggedIn.AccessToken)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials, "access tokens cannot refresh")
}
