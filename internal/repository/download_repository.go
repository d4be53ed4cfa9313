package repository

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/maynagashev/snipvault/internal/models"
)

// DownloadRepository определяет методы для работы с журналом скачиваний.
type DownloadRepository interface {
	// RecordDownload атомарно фиксирует скачивание: добавляет запись в журнал
	// и увеличивает счетчики скачиваний сниппета и пользователя.
	// Возвращает false, если запись для тройки (пользователь, имя файла,
	// владелец) уже существует - тогда счетчики не изменяются.
	RecordDownload(ctx context.Context, record *models.DownloadRecord) (bool, error)
}

// postgresDownloadRepository реализует DownloadRepository для PostgreSQL.
type postgresDownloadRepository struct {
	db *sqlx.DB
}

// NewPostgresDownloadRepository создает новый экземпляр репозитория журнала скачиваний.
func NewPostgresDownloadRepository(db *sqlx.DB) DownloadRepository {
	return &postgresDownloadRepository{db: db}
}

// RecordDownload выполняет вставку в журнал и обновление счетчиков в одной транзакции.
//
// Идемпотентность обеспечивает уникальный индекс (user_id, file_name, owner_id):
// проверка и вставка происходят одним оператором INSERT ... ON CONFLICT DO NOTHING,
// поэтому из N конкурентных скачиваний запись создаст ровно одно, а остальные
// получат false без гонки между проверкой и вставкой.
func (r *postgresDownloadRepository) RecordDownload(
	ctx context.Context,
	record *models.DownloadRecord,
) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // Безопасно после успешного Commit

	query := `INSERT INTO downloads (user_id, snippet_id, owner_id, owner_username, file_name)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (user_id, file_name, owner_id) DO NOTHING`
	result, err := tx.ExecContext(ctx, query,
		record.UserID, record.SnippetID, record.OwnerID, record.OwnerUsername, record.FileName)
	if err != nil {
		log.Printf("[DownloadRepo] Ошибка при записи в журнал скачиваний: %v", err)
		return false, fmt.Errorf("ошибка выполнения запроса на запись скачивания: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ошибка получения количества вставленных строк: %w", err)
	}
	if rows == 0 {
		// Пользователь уже скачивал этот файл у этого владельца
		log.Printf("[DownloadRepo] Повторное скачивание '%s' пользователем %d отклонено",
			record.FileName, record.UserID)
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE snippets SET download_count = download_count + 1 WHERE id = $1`, record.SnippetID)
	if err != nil {
		log.Printf("[DownloadRepo] Ошибка при увеличении счетчика скачиваний сниппета %s: %v",
			record.SnippetID, err)
		return false, fmt.Errorf("ошибка обновления счетчика скачиваний сниппета: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET total_downloads = total_downloads + 1, updated_at = now() WHERE id = $1`,
		record.UserID)
	if err != nil {
		log.Printf("[DownloadRepo] Ошибка при увеличении счетчика скачиваний пользователя %d: %v",
			record.UserID, err)
		return false, fmt.Errorf("ошибка обновления счетчика скачиваний пользователя: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	log.Printf("[DownloadRepo] Скачивание '%s' пользователем %d зафиксировано",
		record.FileName, record.UserID)
	return true, nil
}
