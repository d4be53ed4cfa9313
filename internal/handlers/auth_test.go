package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/snipvault/internal/handlers"
	"github.com/maynagashev/snipvault/internal/middleware"
	"github.com/maynagashev/snipvault/internal/services"
)

// --- Mock AuthService --- //

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, username, password string) error {
	args := m.Called(ctx, username, password)
	return args.Error(0)
}

func (m *MockAuthService) Login(
	ctx context.Context,
	username, password string,
	ttlMinutes int,
) (int64, string, error) {
	args := m.Called(ctx, username, password, ttlMinutes)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.String(1), args.Error(2)
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// --- Mock TokenService --- //

type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	args := m.Called(ctx, userID, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Validate(ctx context.Context, value string) (int64, error) {
	args := m.Called(ctx, value)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenService) Revoke(ctx context.Context, value string) error {
	args := m.Called(ctx, value)
	return args.Error(0)
}

// --- Tests --- //

func TestNewAuthHandler(t *testing.T) {
	h := handlers.NewAuthHandler(new(MockAuthService), new(MockTokenService))
	assert.NotNil(t, h)
}

// Вспомогательная функция для создания роутера с обработчиком.
func setupAuthRouter(h *handlers.AuthHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/token/validate", h.ValidateToken)
	r.Post("/logout", h.Logout)
	return r
}

func TestAuthHandlerRegister(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		mockUsername    string
		mockPassword    string
		mockReturnError error
		expectedStatus  int
		expectedBody    string // Проверяем подстроку в теле ответа
	}{
		{
			name:            "Успешная регистрация",
			body:            `{"username": "testuser", "password": "password123"}`,
			mockUsername:    "testuser",
			mockPassword:    "password123",
			mockReturnError: nil,
			expectedStatus:  http.StatusCreated,
			expectedBody:    "Пользователь успешно зарегистрирован",
		},
		{
			name:           "Невалидный JSON",
			body:           `{"username": "testuser", "password": "password123"`, // Сломанный JSON
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Неверный формат запроса",
		},
		{
			name:           "Пустой username",
			body:           `{"username": "", "password": "password123"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Имя пользователя и пароль не могут быть пустыми",
		},
		{
			name:           "Пустой password",
			body:           `{"username": "testuser", "password": ""}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Имя пользователя и пароль не могут быть пустыми",
		},
		{
			name:            "Имя пользователя занято",
			body:            `{"username": "existinguser", "password": "password123"}`,
			mockUsername:    "existinguser",
			mockPassword:    "password123",
			mockReturnError: services.ErrUsernameTaken,
			expectedStatus:  http.StatusConflict,
			expectedBody:    "Имя пользователя уже занято",
		},
		{
			name:            "Внутренняя ошибка сервера",
			body:            `{"username": "erroruser", "password": "password123"}`,
			mockUsername:    "erroruser",
			mockPassword:    "password123",
			mockReturnError: errors.New("some internal error"),
			expectedStatus:  http.StatusInternalServerError,
			expectedBody:    "Внутренняя ошибка сервера",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockAuthService)
			h := handlers.NewAuthHandler(mockService, new(MockTokenService))
			r := setupAuthRouter(h)

			// Настраиваем мок только если ожидается вызов сервиса
			if tt.mockUsername != "" || tt.mockPassword != "" {
				mockService.On("Register", mock.Anything, tt.mockUsername, tt.mockPassword).
					Return(tt.mockReturnError).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	t.Run("Успешный вход с запрошенным TTL", func(t *testing.T) {
		mockService := new(MockAuthService)
		h := handlers.NewAuthHandler(mockService, new(MockTokenService))
		r := setupAuthRouter(h)

		mockService.On("Login", mock.Anything, "testuser", "password123", 15).
			Return(int64(42), "issued-token", nil).Once()

		body := `{"username": "testuser", "password": "password123", "ttlMinutes": 15}`
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			UserID int64  `json:"userId"`
			Token  string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, int64(42), resp.UserID)
		assert.Equal(t, "issued-token", resp.Token)
		mockService.AssertExpectations(t)
	})

	t.Run("Вход без ttlMinutes", func(t *testing.T) {
		mockService := new(MockAuthService)
		h := handlers.NewAuthHandler(mockService, new(MockTokenService))
		r := setupAuthRouter(h)

		// Отсутствующее поле приходит нулем: TTL по умолчанию выбирает сервис токенов
		mockService.On("Login", mock.Anything, "testuser", "password123", 0).
			Return(int64(42), "issued-token", nil).Once()

		body := `{"username": "testuser", "password": "password123"}`
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Неверные учетные данные", func(t *testing.T) {
		mockService := new(MockAuthService)
		h := handlers.NewAuthHandler(mockService, new(MockTokenService))
		r := setupAuthRouter(h)

		mockService.On("Login", mock.Anything, "testuser", "wrongpassword", 0).
			Return(int64(0), "", services.ErrInvalidCredentials).Once()

		body := `{"username": "testuser", "password": "wrongpassword"}`
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Неверное имя пользователя или пароль")
		mockService.AssertExpectations(t)
	})

	t.Run("Пустые поля", func(t *testing.T) {
		mockService := new(MockAuthService)
		h := handlers.NewAuthHandler(mockService, new(MockTokenService))
		r := setupAuthRouter(h)

		body := `{"username": "", "password": ""}`
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthHandlerValidateToken(t *testing.T) {
	t.Run("Валидный токен", func(t *testing.T) {
		mockTokens := new(MockTokenService)
		h := handlers.NewAuthHandler(new(MockAuthService), mockTokens)
		r := setupAuthRouter(h)

		mockTokens.On("Validate", mock.Anything, "good-token").Return(int64(42), nil).Once()

		body := `{"token": "good-token"}`
		req := httptest.NewRequest(http.MethodPost, "/token/validate", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			UserID int64 `json:"userId"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, int64(42), resp.UserID)
		mockTokens.AssertExpectations(t)
	})

	t.Run("Истекшая сессия", func(t *testing.T) {
		mockTokens := new(MockTokenService)
		h := handlers.NewAuthHandler(new(MockAuthService), mockTokens)
		r := setupAuthRouter(h)

		mockTokens.On("Validate", mock.Anything, "expired-token").
			Return(int64(0), services.ErrSessionExpired).Once()

		body := `{"token": "expired-token"}`
		req := httptest.NewRequest(http.MethodPost, "/token/validate", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), `"loggedOut":true`)
		mockTokens.AssertExpectations(t)
	})

	t.Run("Невалидный токен", func(t *testing.T) {
		mockTokens := new(MockTokenService)
		h := handlers.NewAuthHandler(new(MockAuthService), mockTokens)
		r := setupAuthRouter(h)

		mockTokens.On("Validate", mock.Anything, "bad-token").
			Return(int64(0), services.ErrInvalidToken).Once()

		body := `{"token": "bad-token"}`
		req := httptest.NewRequest(http.MethodPost, "/token/validate", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), `"loggedOut":true`)
		mockTokens.AssertExpectations(t)
	})

	t.Run("Пустой токен", func(t *testing.T) {
		mockTokens := new(MockTokenService)
		h := handlers.NewAuthHandler(new(MockAuthService), mockTokens)
		r := setupAuthRouter(h)

		body := `{"token": ""}`
		req := httptest.NewRequest(http.MethodPost, "/token/validate", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockTokens.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
	})
}

func TestAuthHandlerLogout(t *testing.T) {
	t.Run("Успешный выход", func(t *testing.T) {
		mockService := new(MockAuthService)
		h := handlers.NewAuthHandler(mockService, new(MockTokenService))

		mockService.On("Logout", mock.Anything, "session-token").Return(nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/logout", http.NoBody)
		// Токен кладет в контекст middleware аутентификации
		ctx := context.WithValue(req.Context(), middleware.TokenKey, "session-token")
		rr := httptest.NewRecorder()
		h.Logout(rr, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Выход выполнен успешно")
		mockService.AssertExpectations(t)
	})

	t.Run("Токен отсутствует в контексте", func(t *testing.T) {
		mockService := new(MockAuthService)
		h := handlers.NewAuthHandler(mockService, new(MockTokenService))

		req := httptest.NewRequest(http.MethodPost, "/logout", http.NoBody)
		rr := httptest.NewRecorder()
		h.Logout(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
	})

	t.Run("Токен уже отозван", func(t *testing.T) {
		mockService := new(MockAuthService)
		h := handlers.NewAuthHandler(mockService, new(MockTokenService))

		mockService.On("Logout", mock.Anything, "stale-token").
			Return(services.ErrInvalidToken).Once()

		req := httptest.NewRequest(http.MethodPost, "/logout", http.NoBody)
		ctx := context.WithValue(req.Context(), middleware.TokenKey, "stale-token")
		rr := httptest.NewRecorder()
		h.Logout(rr, req.WithContext(ctx))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		mockService.AssertExpectations(t)
	})
}
