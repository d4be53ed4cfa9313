package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/snipvault/internal/models"
	"github.com/maynagashev/snipvault/internal/repository"
	"github.com/maynagashev/snipvault/internal/services"
)

// --- Mock TokenRepository --- //

type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) CreateToken(ctx context.Context, token *models.Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) GetToken(ctx context.Context, value string) (*models.Token, error) {
	args := m.Called(ctx, value)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Token), args.Error(1)
}

func (m *MockTokenRepository) DeleteToken(ctx context.Context, value string) error {
	args := m.Called(ctx, value)
	return args.Error(0)
}

// --- Tests --- //

func TestTokenServiceIssue(t *testing.T) {
	t.Run("Успешный выпуск с запрошенным TTL", func(t *testing.T) {
		repo := new(MockTokenRepository)
		svc := services.NewTokenService(repo)

		var saved *models.Token
		repo.On("CreateToken", mock.Anything, mock.AnythingOfType("*models.Token")).
			Run(func(args mock.Arguments) {
				//nolint:errcheck // Ошибки кастования в моках приемлемы
				saved = args.Get(1).(*models.Token)
			}).
			Return(nil).Once()

		value, err := svc.Issue(context.Background(), 7, 15*time.Minute)
		require.NoError(t, err)
		require.NotNil(t, saved)

		// Токен - валидный UUID, сохранен как есть
		assert.Equal(t, saved.Value, value)
		_, parseErr := uuid.Parse(value)
		assert.NoError(t, parseErr)

		assert.Equal(t, int64(7), saved.UserID)
		assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), saved.ExpiresAt, 5*time.Second)
		repo.AssertExpectations(t)
	})

	t.Run("Неположительный TTL заменяется значением по умолчанию", func(t *testing.T) {
		repo := new(MockTokenRepository)
		svc := services.NewTokenService(repo)

		var saved *models.Token
		repo.On("CreateToken", mock.Anything, mock.AnythingOfType("*models.Token")).
			Run(func(args mock.Arguments) {
				//nolint:errcheck // Ошибки кастования в моках приемлемы
				saved = args.Get(1).(*models.Token)
			}).
			Return(nil).Once()

		_, err := svc.Issue(context.Background(), 7, 0)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC().Add(services.DefaultTokenTTL), saved.ExpiresAt, 5*time.Second)
		repo.AssertExpectations(t)
	})

	t.Run("Ошибка хранилища", func(t *testing.T) {
		repo := new(MockTokenRepository)
		svc := services.NewTokenService(repo)

		repo.On("CreateToken", mock.Anything, mock.Anything).
			Return(errors.New("database error")).Once()

		value, err := svc.Issue(context.Background(), 7, time.Minute)
		require.Error(t, err)
		assert.Empty(t, value)
		repo.AssertExpectations(t)
	})
}

func TestTokenServiceValidate(t *testing.T) {
	t.Run("Валидный токен", func(t *testing.T) {
		repo := new(MockTokenRepository)
		svc := services.NewTokenService(repo)

		repo.On("GetToken", mock.Anything, "good-token").
			Return(&models.Token{
				Value:     "good-token",
				UserID:    42,
				ExpiresAt: time.Now().UTC().Add(time.Minute),
			}, nil).Once()

		userID, err := svc.Validate(context.Background(), "good-token")
		require.NoError(t, err)
		assert.Equal(t, int64(42), userID)
		repo.AssertExpectations(t)
	})

	t.Run("Проверка неразрушающая", func(t *testing.T) {
		repo := new(MockTokenRepository)
		svc := services.NewTokenService(repo)

		repo.On("GetToken", mock.Anything, "good-token").
			Return(&models.Token{
				Value:     "good-token",
				UserID:    42,
				ExpiresAt: time.Now().UTC().Add(time.Minute),
			}, nil).Twice()

		_, err := svc.Validate(context.Background(), "good-token")
		require.NoError(t, err)
		userID, err := svc.Validate(context.Background(), "good-token")
		require.NoError(t, err)
		assert.Equal(t, int64(42), userID)

		// Токен не удалялся
		repo.AssertNotCalled(t, "DeleteToken", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("Токен не найден", func(t *testing.T) {
		repo := new(MockTokenRepository)
		svc := services.NewTokenService(repo)

		repo.On("GetToken", mock.Anything, "missing").
			Return(nil, repository.ErrTokenNotFound).Once()

		userID, err := svc.Validate(context.Background(), "missing")
		require.ErrorIs(t, err, services.ErrInvalidToken)
		assert.Zero(t, userID)
		repo.AssertExpectations(t)
	})

	t.Run("Сессия истекла", func(t *testing.T) {
		repo := new(MockTokenRepository)
		svc := services.NewTokenService(repo)

		repo.On("GetToken", mock.Anything, "expired").
			Return(&models.Token{
				Value:     "expired",
				UserID:    42,
				ExpiresAt: time.Now().UTC().Add(-time.Minute),
			}, nil).Once()

		userID, err := svc.Validate(context.Background(), "expired")
		require.ErrorIs(t, err, services.ErrSessionExpired)
		assert.Zero(t, userID)
		repo.AssertExpectations(t)
	})

	t.Run("Ошибка хранилища", func(t *testing.T) {
		repo := new(MockTokenRepository)
		svc := services.NewTokenService(repo)

		repo.On("GetToken", mock.Anything, "any").
			Return(nil, errors.New("database error")).Once()

		_, err := svc.Validate(context.Background(), "any")
		require.Error(t, err)
		assert.NotErrorIs(t, err, services.ErrInvalidToken)
		repo.AssertExpectations(t)
	})
}

func TestTokenServiceRevoke(t *testing.T) {
	t.Run("Успешный отзыв", func(t *testing.T) {
		repo := new(MockTokenRepository)
		svc := services.NewTokenService(repo)

		repo.On("DeleteToken", mock.Anything, "good-token").Return(nil).Once()

		err := svc.Revoke(context.Background(), "good-token")
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("Токен уже отозван", func(t *testing.T) {
		repo := new(MockTokenRepository)
		svc := services.NewTokenService(repo)

		repo.On("DeleteToken", mock.Anything, "missing").
			Return(repository.ErrTokenNotFound).Once()

		err := svc.Revoke(context.Background(), "missing")
		require.ErrorIs(t, err, services.ErrInvalidToken)
		repo.AssertExpectations(t)
	})
}
