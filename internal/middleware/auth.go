package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/maynagashev/snipvault/internal/models"
	"github.com/maynagashev/snipvault/internal/services"
)

// Тип для ключа контекста.
type contextKey string

// Ключи для хранения данных аутентификации в контексте.
const (
	UserIDKey contextKey = "userID"
	TokenKey  contextKey = "token"
)

// Authenticator проверяет токен сессии из заголовка Authorization.
//
// Токен непрозрачный: проверка - это запрос в хранилище токенов через
// TokenService, никакой подписи в самом токене нет. Невалидный и истекший
// токены оба дают 401 с флагом loggedOut, чтобы клиент выбросил
// кешированный токен, а не повторял запрос.
func Authenticator(tokens services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Получаем заголовок Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Println("[AuthMiddleware] Заголовок Authorization отсутствует")
				writeUnauthorized(w, "Требуется аутентификация", false)
				return
			}

			// Поддерживаем форматы "Bearer <token>" и просто "<token>"
			tokenValue := authHeader
			if headerParts := strings.Split(authHeader, " "); len(headerParts) == 2 {
				if !strings.EqualFold(headerParts[0], "bearer") {
					log.Printf("[AuthMiddleware] Неверный формат заголовка Authorization: %s", authHeader)
					writeUnauthorized(w, "Неверный формат токена", false)
					return
				}
				tokenValue = headerParts[1]
			}

			// Проверяем токен по хранилищу
			userID, err := tokens.Validate(r.Context(), tokenValue)
			if err != nil {
				switch {
				case errors.Is(err, services.ErrSessionExpired):
					log.Println("[AuthMiddleware] Сессия истекла")
					writeUnauthorized(w, "Сессия истекла, войдите заново", true)
				case errors.Is(err, services.ErrInvalidToken):
					log.Println("[AuthMiddleware] Предоставлен невалидный токен")
					writeUnauthorized(w, "Невалидный или истекший токен", true)
				default:
					log.Printf("[AuthMiddleware] Ошибка проверки токена: %v", err)
					http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
				}
				return
			}

			// Добавляем UserID и сам токен в контекст запроса
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, TokenKey, tokenValue)

			log.Printf("[AuthMiddleware] Пользователь %d успешно аутентифицирован", userID)

			// Передаем управление следующему обработчику с обновленным контекстом
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext извлекает UserID из контекста запроса.
// Возвращает ID пользователя и true, если ID найден, иначе 0 и false.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

// GetTokenFromContext извлекает значение токена из контекста запроса.
func GetTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// writeUnauthorized отправляет 401 со структурированным телом ошибки.
func writeUnauthorized(w http.ResponseWriter, message string, loggedOut bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(models.ErrorResponse{Error: message, LoggedOut: loggedOut}); err != nil {
		log.Printf("[AuthMiddleware] Ошибка кодирования ответа 401: %v", err)
	}
}
