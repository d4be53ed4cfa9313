package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/maynagashev/snipvault/internal/middleware"
	"github.com/maynagashev/snipvault/internal/models"
	"github.com/maynagashev/snipvault/internal/services"
)

// AuthHandler обрабатывает HTTP-запросы, связанные с аутентификацией и сессиями.
type AuthHandler struct {
	authService  services.AuthService
	tokenService services.TokenService
}

// NewAuthHandler создает новый экземпляр AuthHandler.
func NewAuthHandler(as services.AuthService, ts services.TokenService) *AuthHandler {
	return &AuthHandler{authService: as, tokenService: ts}
}

// Register обрабатывает запрос на регистрацию нового пользователя.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	// Декодируем JSON из тела запроса
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[AuthHandler] Ошибка декодирования запроса регистрации: %v", err)
		writeError(w, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	// Валидация входных данных (простая)
	if req.Username == "" || req.Password == "" {
		log.Printf("[AuthHandler] Пустое имя пользователя или пароль при регистрации")
		writeError(w, http.StatusBadRequest, "Имя пользователя и пароль не могут быть пустыми")
		return
	}

	log.Printf("[AuthHandler] Попытка регистрации пользователя: %s", req.Username)

	if err := h.authService.Register(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "Имя пользователя уже занято")
			return
		}
		log.Printf("[AuthHandler] Внутренняя ошибка при регистрации '%s': %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	writeJSON(w, http.StatusCreated, models.MessageResponse{Message: "Пользователь успешно зарегистрирован"})
	log.Printf("[AuthHandler] Успешная регистрация для: %s", req.Username)
}

// Login обрабатывает запрос на вход пользователя.
// В ответе - непрозрачный токен сессии; время жизни клиент может задать
// полем ttlMinutes (по умолчанию 30 минут).
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	// Декодируем JSON из тела запроса
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[AuthHandler] Ошибка декодирования запроса входа: %v", err)
		writeError(w, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	// Валидация входных данных (простая)
	if req.Username == "" || req.Password == "" {
		log.Printf("[AuthHandler] Пустое имя пользователя или пароль при входе")
		writeError(w, http.StatusBadRequest, "Имя пользователя и пароль не могут быть пустыми")
		return
	}

	log.Printf("[AuthHandler] Попытка входа пользователя: %s", req.Username)

	userID, token, err := h.authService.Login(r.Context(), req.Username, req.Password, req.TTLMinutes)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Неверное имя пользователя или пароль")
			return
		}
		log.Printf("[AuthHandler] Внутренняя ошибка при входе '%s': %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		UserID:  userID,
		Token:   token,
		Message: "Вход выполнен успешно",
	})
	log.Printf("[AuthHandler] Успешный вход для: %s", req.Username)
}

// ValidateToken обрабатывает запрос на проверку токена.
// Публичный маршрут: им пользуются другие обработчики за шлюзом.
// Проверка неразрушающая - токен можно проверять сколько угодно раз.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[AuthHandler] Ошибка декодирования запроса проверки токена: %v", err)
		writeError(w, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "Отсутствует токен в запросе")
		return
	}

	userID, err := h.tokenService.Validate(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSessionExpired):
			writeLoggedOutError(w, http.StatusUnauthorized, "Сессия истекла, войдите заново")
		case errors.Is(err, services.ErrInvalidToken):
			writeLoggedOutError(w, http.StatusUnauthorized, "Невалидный или истекший токен")
		default:
			log.Printf("[AuthHandler] Внутренняя ошибка при проверке токена: %v", err)
			writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		}
		return
	}

	writeJSON(w, http.StatusOK, models.ValidateTokenResponse{UserID: userID})
}

// Logout обрабатывает запрос на выход: отзывает токен текущей сессии.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.GetTokenFromContext(r.Context())
	if !ok {
		log.Printf("[AuthHandler] Не удалось получить токен из контекста")
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	if err := h.authService.Logout(r.Context(), token); err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "Невалидный или истекший токен")
			return
		}
		log.Printf("[AuthHandler] Внутренняя ошибка при выходе: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Выход выполнен успешно"})
	log.Printf("[AuthHandler] Пользователь вышел из системы")
}
