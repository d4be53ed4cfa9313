package services

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/maynagashev/snipvault/internal/models"
	"github.com/maynagashev/snipvault/internal/repository"
)

// AuthService определяет интерфейс для сервиса аутентификации.
type AuthService interface {
	Register(ctx context.Context, username, password string) error
	// Login возвращает ID пользователя и токен сессии.
	// ttlMinutes <= 0 означает время жизни по умолчанию.
	Login(ctx context.Context, username, password string, ttlMinutes int) (int64, string, error)
	// Logout отзывает токен сессии.
	Logout(ctx context.Context, token string) error
}

// Убедимся, что authService удовлетворяет интерфейсу AuthService.
var _ AuthService = (*authService)(nil)

type authService struct {
	userRepo repository.UserRepository // Зависимость от репозитория пользователей
	tokens   TokenService              // Выпуск и отзыв токенов сессий
}

// NewAuthService создает новый экземпляр сервиса аутентификации.
func NewAuthService(userRepo repository.UserRepository, tokens TokenService) AuthService {
	return &authService{userRepo: userRepo, tokens: tokens}
}

// Register регистрирует нового пользователя.
func (s *authService) Register(ctx context.Context, username, password string) error {
	// Хешируем пароль
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[AuthService] Ошибка хеширования пароля для '%s': %v", username, err)
		return errors.New("внутренняя ошибка сервера при хешировании пароля")
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
	}

	// Создаем пользователя через репозиторий
	_, err = s.userRepo.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			log.Printf("[AuthService] Попытка регистрации с занятым именем: %s", username)
			return ErrUsernameTaken // Возвращаем ошибку слоя сервиса
		}
		log.Printf("[AuthService] Непредвиденная ошибка репозитория при регистрации '%s': %v", username, err)
		return errors.New("внутренняя ошибка сервера при создании пользователя")
	}

	log.Printf("[AuthService] Пользователь '%s' успешно зарегистрирован", username)
	return nil
}

// Login аутентифицирует пользователя и выпускает токен сессии.
func (s *authService) Login(
	ctx context.Context,
	username, password string,
	ttlMinutes int,
) (int64, string, error) {
	// Получаем пользователя по имени пользователя
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Printf("[AuthService] Попытка входа несуществующего пользователя: %s", username)
			return 0, "", ErrInvalidCredentials // Общая ошибка для несуществующего пользователя и неверного пароля
		}
		log.Printf("[AuthService] Ошибка репозитория при поиске '%s': %v", username, err)
		return 0, "", errors.New("внутренняя ошибка сервера при поиске пользователя")
	}

	// Сравниваем предоставленный пароль с хешем из базы данных
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		// Ошибка сравнения означает неверный пароль (или другую проблему bcrypt)
		log.Printf("[AuthService] Неверный пароль для пользователя: %s", username)
		return 0, "", ErrInvalidCredentials // Общая ошибка
	}

	// Выпускаем токен сессии
	ttl := time.Duration(ttlMinutes) * time.Minute
	token, err := s.tokens.Issue(ctx, user.ID, ttl)
	if err != nil {
		log.Printf("[AuthService] Ошибка выпуска токена для '%s': %v", username, err)
		return 0, "", errors.New("внутренняя ошибка сервера при выпуске токена")
	}

	log.Printf("[AuthService] Пользователь '%s' успешно аутентифицирован", username)
	return user.ID, token, nil
}

// Logout отзывает токен сессии пользователя.
func (s *authService) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Кастомные ошибки сервиса.
var (
	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
	ErrUsernameTaken      = errors.New("имя пользователя уже занято")
)
