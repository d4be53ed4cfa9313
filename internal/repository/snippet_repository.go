package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/maynagashev/snipvault/internal/models"
)

// SnippetRepository определяет методы для работы со сниппетами и их наборами доступа.
//
// Набор доступа хранится в отдельной таблице snippet_permissions с составным
// первичным ключом, поэтому grant/revoke - атомарные однострочные операции
// без read-modify-write: параллельные вызовы не теряют обновления.
type SnippetRepository interface {
	CreateSnippet(ctx context.Context, snippet *models.Snippet) error
	GetByFileName(ctx context.Context, fileName string) (*models.Snippet, error)
	GetByFileNameAndOwner(ctx context.Context, fileName string, ownerID int64) (*models.Snippet, error)
	GetVisibleByFileName(ctx context.Context, fileName string, requesterID int64) (*models.Snippet, error)
	UpdateObjectKey(ctx context.Context, snippetID string, objectKey string) (time.Time, error)
	DeleteSnippet(ctx context.Context, snippetID string, ownerID int64) error
	GrantAccess(ctx context.Context, snippetID string, userID int64) error
	RevokeAccess(ctx context.Context, snippetID string, userID int64) error
	ListForUser(ctx context.Context, userID int64) ([]models.DashboardSnippet, error)
	CountFileTypes(ctx context.Context, ownerID int64, limit int) (map[string]int64, error)
}

// postgresSnippetRepository реализует SnippetRepository для PostgreSQL.
type postgresSnippetRepository struct {
	db *sqlx.DB
}

// NewPostgresSnippetRepository создает новый экземпляр репозитория сниппетов.
func NewPostgresSnippetRepository(db *sqlx.DB) SnippetRepository {
	return &postgresSnippetRepository{db: db}
}

// CreateSnippet сохраняет новый сниппет и увеличивает счетчик загрузок владельца.
// Обе записи выполняются в одной транзакции. При нарушении уникальности
// (owner_id, file_name) возвращает ErrDuplicateFileName.
func (r *postgresSnippetRepository) CreateSnippet(ctx context.Context, snippet *models.Snippet) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // Безопасно после успешного Commit

	query := `INSERT INTO snippets (id, owner_id, owner_username, file_name, file_type, object_key)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.ExecContext(ctx, query,
		snippet.ID, snippet.OwnerID, snippet.OwnerUsername, snippet.FileName, snippet.FileType, snippet.ObjectKey)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[SnippetRepo] Файл '%s' уже существует у пользователя %d", snippet.FileName, snippet.OwnerID)
			return ErrDuplicateFileName
		}
		log.Printf("[SnippetRepo] Ошибка при создании сниппета '%s': %v", snippet.FileName, err)
		return fmt.Errorf("ошибка выполнения запроса на создание сниппета: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET total_uploads = total_uploads + 1, updated_at = now() WHERE id = $1`, snippet.OwnerID)
	if err != nil {
		log.Printf("[SnippetRepo] Ошибка при увеличении счетчика загрузок пользователя %d: %v", snippet.OwnerID, err)
		return fmt.Errorf("ошибка обновления счетчика загрузок: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	log.Printf("[SnippetRepo] Сниппет '%s' (ID: %s) успешно создан", snippet.FileName, snippet.ID)
	return nil
}

// GetByFileName находит сниппет по имени файла без учета владельца.
// Используется владельческими операциями (удаление), которые намеренно
// различают "не найдено" и "не ваш сниппет".
func (r *postgresSnippetRepository) GetByFileName(ctx context.Context, fileName string) (*models.Snippet, error) {
	query := `SELECT id, owner_id, owner_username, file_name, file_type, object_key,
	                 download_count, created_at, updated_at
	          FROM snippets WHERE file_name=$1
	          ORDER BY updated_at DESC LIMIT 1`
	var snippet models.Snippet

	err := r.db.GetContext(ctx, &snippet, query, fileName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnippetNotFound
		}
		log.Printf("[SnippetRepo] Ошибка при поиске сниппета '%s': %v", fileName, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение сниппета: %w", err)
	}

	return &snippet, nil
}

// GetByFileNameAndOwner находит сниппет по имени файла в пределах заявленного владельца.
func (r *postgresSnippetRepository) GetByFileNameAndOwner(
	ctx context.Context,
	fileName string,
	ownerID int64,
) (*models.Snippet, error) {
	query := `SELECT id, owner_id, owner_username, file_name, file_type, object_key,
	                 download_count, created_at, updated_at
	          FROM snippets WHERE file_name=$1 AND owner_id=$2`
	var snippet models.Snippet

	err := r.db.GetContext(ctx, &snippet, query, fileName, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnippetNotFound
		}
		log.Printf("[SnippetRepo] Ошибка при поиске сниппета '%s' владельца %d: %v", fileName, ownerID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение сниппета: %w", err)
	}

	return &snippet, nil
}

// GetVisibleByFileName находит сниппет по имени файла среди видимых запросившему:
// он либо владелец, либо входит в набор доступа. Недоступные сниппеты с таким
// именем для запросившего неотличимы от несуществующих - существование чужих
// сниппетов не раскрывается.
//
// Так как имя файла уникально лишь в пределах владельца, видимых совпадений
// может быть несколько: предпочитаем собственный сниппет, затем свежайший.
func (r *postgresSnippetRepository) GetVisibleByFileName(
	ctx context.Context,
	fileName string,
	requesterID int64,
) (*models.Snippet, error) {
	query := `SELECT s.id, s.owner_id, s.owner_username, s.file_name, s.file_type, s.object_key,
	                 s.download_count, s.created_at, s.updated_at
	          FROM snippets s
	          WHERE s.file_name = $1
	            AND (s.owner_id = $2 OR EXISTS (
	                SELECT 1 FROM snippet_permissions p
	                WHERE p.snippet_id = s.id AND p.user_id = $2))
	          ORDER BY (s.owner_id = $2) DESC, s.updated_at DESC
	          LIMIT 1`
	var snippet models.Snippet

	err := r.db.GetContext(ctx, &snippet, query, fileName, requesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnippetNotFound
		}
		log.Printf("[SnippetRepo] Ошибка при поиске видимого сниппета '%s' для пользователя %d: %v",
			fileName, requesterID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение сниппета: %w", err)
	}

	return &snippet, nil
}

// UpdateObjectKey перенаправляет сниппет на новый ключ объекта и обновляет
// отметку времени изменения. Возвращает новое значение updated_at.
func (r *postgresSnippetRepository) UpdateObjectKey(
	ctx context.Context,
	snippetID string,
	objectKey string,
) (time.Time, error) {
	query := `UPDATE snippets SET object_key=$1, updated_at=now() WHERE id=$2 RETURNING updated_at`
	var updatedAt time.Time

	err := r.db.QueryRowxContext(ctx, query, objectKey, snippetID).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrSnippetNotFound
		}
		log.Printf("[SnippetRepo] Ошибка при обновлении ключа объекта сниппета %s: %v", snippetID, err)
		return time.Time{}, fmt.Errorf("ошибка выполнения запроса на обновление сниппета: %w", err)
	}

	log.Printf("[SnippetRepo] Сниппет %s перенаправлен на объект '%s'", snippetID, objectKey)
	return updatedAt, nil
}

// DeleteSnippet удаляет сниппет и уменьшает счетчик загрузок владельца (не ниже нуля).
// Набор доступа и производные метаданные удаляются каскадом вместе со строкой.
func (r *postgresSnippetRepository) DeleteSnippet(ctx context.Context, snippetID string, ownerID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM snippets WHERE id=$1`, snippetID)
	if err != nil {
		log.Printf("[SnippetRepo] Ошибка при удалении сниппета %s: %v", snippetID, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление сниппета: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества удаленных строк: %w", err)
	}
	if rows == 0 {
		return ErrSnippetNotFound
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET total_uploads = GREATEST(total_uploads - 1, 0), updated_at = now() WHERE id = $1`,
		ownerID)
	if err != nil {
		log.Printf("[SnippetRepo] Ошибка при уменьшении счетчика загрузок пользователя %d: %v", ownerID, err)
		return fmt.Errorf("ошибка обновления счетчика загрузок: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	log.Printf("[SnippetRepo] Сниппет %s успешно удален", snippetID)
	return nil
}

// GrantAccess добавляет пользователя в набор доступа сниппета.
// Повторная выдача уже существующего доступа - no-op (ON CONFLICT DO NOTHING).
func (r *postgresSnippetRepository) GrantAccess(ctx context.Context, snippetID string, userID int64) error {
	query := `INSERT INTO snippet_permissions (snippet_id, user_id) VALUES ($1, $2)
	          ON CONFLICT (snippet_id, user_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, snippetID, userID)
	if err != nil {
		log.Printf("[SnippetRepo] Ошибка при выдаче доступа пользователю %d к сниппету %s: %v",
			userID, snippetID, err)
		return fmt.Errorf("ошибка выполнения запроса на выдачу доступа: %w", err)
	}

	log.Printf("[SnippetRepo] Пользователю %d выдан доступ к сниппету %s", userID, snippetID)
	return nil
}

// RevokeAccess убирает пользователя из набора доступа сниппета.
// Отзыв отсутствующего доступа - no-op.
func (r *postgresSnippetRepository) RevokeAccess(ctx context.Context, snippetID string, userID int64) error {
	query := `DELETE FROM snippet_permissions WHERE snippet_id=$1 AND user_id=$2`

	_, err := r.db.ExecContext(ctx, query, snippetID, userID)
	if err != nil {
		log.Printf("[SnippetRepo] Ошибка при отзыве доступа пользователя %d к сниппету %s: %v",
			userID, snippetID, err)
		return fmt.Errorf("ошибка выполнения запроса на отзыв доступа: %w", err)
	}

	log.Printf("[SnippetRepo] У пользователя %d отозван доступ к сниппету %s", userID, snippetID)
	return nil
}

// ListForUser возвращает строки дашборда: сниппеты, принадлежащие пользователю
// или доступные ему, вместе с именами пользователей из набора доступа.
func (r *postgresSnippetRepository) ListForUser(
	ctx context.Context,
	userID int64,
) ([]models.DashboardSnippet, error) {
	query := `SELECT s.file_name, s.owner_username, s.updated_at,
	                 COALESCE(array_agg(u.username ORDER BY u.username)
	                          FILTER (WHERE u.username IS NOT NULL), '{}') AS users_with_access
	          FROM snippets s
	          LEFT JOIN snippet_permissions p ON p.snippet_id = s.id
	          LEFT JOIN users u ON u.id = p.user_id
	          WHERE s.owner_id = $1 OR EXISTS (
	                SELECT 1 FROM snippet_permissions sp
	                WHERE sp.snippet_id = s.id AND sp.user_id = $1)
	          GROUP BY s.id, s.file_name, s.owner_username, s.updated_at
	          ORDER BY s.updated_at DESC`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		log.Printf("[SnippetRepo] Ошибка при получении дашборда пользователя %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса дашборда: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snippets := make([]models.DashboardSnippet, 0)
	for rows.Next() {
		var item models.DashboardSnippet
		var usernames pq.StringArray
		if err = rows.Scan(&item.FileName, &item.Owner, &item.LastModified, &usernames); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки дашборда: %w", err)
		}
		item.UsersWithAccess = []string(usernames)
		snippets = append(snippets, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода строк дашборда: %w", err)
	}

	return snippets, nil
}

// CountFileTypes возвращает самые частые типы файлов среди сниппетов владельца.
func (r *postgresSnippetRepository) CountFileTypes(
	ctx context.Context,
	ownerID int64,
	limit int,
) (map[string]int64, error) {
	query := `SELECT file_type, COUNT(*) AS cnt
	          FROM snippets
	          WHERE owner_id = $1 AND file_type <> ''
	          GROUP BY file_type
	          ORDER BY cnt DESC, file_type
	          LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, ownerID, limit)
	if err != nil {
		log.Printf("[SnippetRepo] Ошибка при подсчете типов файлов пользователя %d: %v", ownerID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса статистики типов файлов: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int64)
	for rows.Next() {
		var fileType string
		var cnt int64
		if err = rows.Scan(&fileType, &cnt); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки статистики: %w", err)
		}
		counts[fileType] = cnt
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода строк статистики: %w", err)
	}

	return counts, nil
}

// Кастомные ошибки репозитория.
var (
	ErrSnippetNotFound   = errors.New("сниппет не найден")
	ErrDuplicateFileName = errors.New("файл с таким именем уже существует у этого пользователя")
)
