package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/maynagashev/snipvault/internal/models"
	"github.com/maynagashev/snipvault/internal/repository"
)

// DefaultTokenTTL - время жизни сессии, если клиент не запросил свое.
const DefaultTokenTTL = 30 * time.Minute

// TokenService определяет интерфейс сервиса токенов сессий.
//
// Токены намеренно непрозрачные, без встроенной подписи: каждая проверка -
// запрос в хранилище. Это размен оптимизации криптографической проверки на
// простоту и тривиальный отзыв - подписанный токен нельзя отозвать без
// денайлиста, который вернул бы ту же зависимость от хранилища.
type TokenService interface {
	// Issue выпускает новый токен для пользователя со сроком жизни ttl.
	Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error)
	// Validate возвращает ID пользователя по токену.
	// Проверка не разрушает токен и может вызываться сколько угодно раз до истечения.
	Validate(ctx context.Context, value string) (int64, error)
	// Revoke удаляет токен (выход из системы).
	Revoke(ctx context.Context, value string) error
}

// Убедимся, что tokenService удовлетворяет интерфейсу TokenService.
var _ TokenService = (*tokenService)(nil)

type tokenService struct {
	tokenRepo repository.TokenRepository
}

// NewTokenService создает новый экземпляр сервиса токенов.
func NewTokenService(tokenRepo repository.TokenRepository) TokenService {
	return &tokenService{tokenRepo: tokenRepo}
}

// Issue генерирует криптографически случайный токен (UUID v4, 122 бита
// энтропии) и сохраняет его с моментом истечения now + ttl.
func (s *tokenService) Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	token := &models.Token{
		Value:     uuid.New().String(),
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}

	if err := s.tokenRepo.CreateToken(ctx, token); err != nil {
		log.Printf("[TokenService] Ошибка выпуска токена для пользователя %d: %v", userID, err)
		return "", errors.New("внутренняя ошибка сервера при выпуске токена")
	}

	log.Printf("[TokenService] Выпущен токен для пользователя %d (TTL %s)", userID, ttl)
	return token.Value, nil
}

// Validate проверяет токен: он должен существовать в хранилище, и момент
// истечения должен быть в будущем. Истекшие токены не удаляются здесь -
// истечение лениво проверяется при каждой валидации.
func (s *tokenService) Validate(ctx context.Context, value string) (int64, error) {
	token, err := s.tokenRepo.GetToken(ctx, value)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return 0, ErrInvalidToken
		}
		log.Printf("[TokenService] Ошибка проверки токена: %v", err)
		return 0, errors.New("внутренняя ошибка сервера при проверке токена")
	}

	if !time.Now().UTC().Before(token.ExpiresAt) {
		log.Printf("[TokenService] Сессия пользователя %d истекла", token.UserID)
		return 0, ErrSessionExpired
	}

	return token.UserID, nil
}

// Revoke удаляет токен из хранилища. Отзыв уже отозванного токена
// безвреден, но сообщается как ErrInvalidToken.
func (s *tokenService) Revoke(ctx context.Context, value string) error {
	err := s.tokenRepo.DeleteToken(ctx, value)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return ErrInvalidToken
		}
		log.Printf("[TokenService] Ошибка отзыва токена: %v", err)
		return errors.New("внутренняя ошибка сервера при отзыве токена")
	}

	log.Printf("[TokenService] Токен отозван")
	return nil
}

// Кастомные ошибки сервиса токенов.
var (
	// ErrInvalidToken - токена нет в хранилище.
	ErrInvalidToken = errors.New("невалидный или истекший токен")
	// ErrSessionExpired - токен существует, но срок его жизни вышел.
	// Отдельный вид ErrInvalidToken: клиенту дополнительно сигнализируется,
	// что кешированный токен нужно выбросить (флаг loggedOut).
	ErrSessionExpired = errors.New("сессия истекла, войдите заново")
)
