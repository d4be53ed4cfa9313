package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/maynagashev/snipvault/internal/models"
)

// TokenRepository определяет методы для работы с токенами сессий в хранилище.
// Истекшие токены не удаляются фоновой задачей: истечение проверяется
// при валидации, поэтому достаточно обычных CRUD-операций.
type TokenRepository interface {
	CreateToken(ctx context.Context, token *models.Token) error
	GetToken(ctx context.Context, value string) (*models.Token, error)
	DeleteToken(ctx context.Context, value string) error
}

// postgresTokenRepository реализует TokenRepository для PostgreSQL.
type postgresTokenRepository struct {
	db *sqlx.DB
}

// NewPostgresTokenRepository создает новый экземпляр репозитория токенов для PostgreSQL.
func NewPostgresTokenRepository(db *sqlx.DB) TokenRepository {
	return &postgresTokenRepository{db: db}
}

// CreateToken сохраняет новый токен сессии.
// Коллизия значений токена не обрабатывается отдельно: при 128 битах
// энтропии она означает неисправимую ошибку хранилища.
func (r *postgresTokenRepository) CreateToken(ctx context.Context, token *models.Token) error {
	query := `INSERT INTO tokens (token, user_id, expires_at) VALUES ($1, $2, $3)`

	_, err := r.db.ExecContext(ctx, query, token.Value, token.UserID, token.ExpiresAt)
	if err != nil {
		log.Printf("[TokenRepo] Ошибка при сохранении токена для пользователя %d: %v", token.UserID, err)
		return fmt.Errorf("ошибка выполнения запроса на сохранение токена: %w", err)
	}

	log.Printf("[TokenRepo] Токен для пользователя %d сохранен (истекает %s)",
		token.UserID, token.ExpiresAt.Format("2006-01-02 15:04:05"))
	return nil
}

// GetToken находит токен по его значению.
// Возвращает ErrTokenNotFound, если токена нет в хранилище.
func (r *postgresTokenRepository) GetToken(ctx context.Context, value string) (*models.Token, error) {
	query := `SELECT token, user_id, expires_at FROM tokens WHERE token=$1`
	var token models.Token

	err := r.db.GetContext(ctx, &token, query, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		log.Printf("[TokenRepo] Ошибка при поиске токена: %v", err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение токена: %w", err)
	}

	return &token, nil
}

// DeleteToken удаляет токен по его значению.
// Возвращает ErrTokenNotFound, если токена уже нет: повторное удаление
// безвредно, но сообщается вызывающему.
func (r *postgresTokenRepository) DeleteToken(ctx context.Context, value string) error {
	query := `DELETE FROM tokens WHERE token=$1`

	result, err := r.db.ExecContext(ctx, query, value)
	if err != nil {
		log.Printf("[TokenRepo] Ошибка при удалении токена: %v", err)
		return fmt.Errorf("ошибка выполнения запроса на удаление токена: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества удаленных строк: %w", err)
	}
	if rows == 0 {
		return ErrTokenNotFound
	}

	log.Printf("[TokenRepo] Токен успешно удален")
	return nil
}

// Кастомная ошибка репозитория.
var (
	ErrTokenNotFound = errors.New("токен не найден")
)
