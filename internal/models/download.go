package models

import "time"

// DownloadRecord представляет одно завершенное скачивание.
// Для тройки (UserID, FileName, OwnerID) может существовать не более
// одной записи - это единственная гарантия идемпотентности журнала скачиваний.
// Записи никогда не изменяются и не удаляются.
type DownloadRecord struct {
	ID            int64     `db:"id"             json:"id"`
	UserID        int64     `db:"user_id"        json:"user_id"`
	SnippetID     string    `db:"snippet_id"     json:"snippet_id"`
	OwnerID       int64     `db:"owner_id"       json:"owner_id"`
	OwnerUsername string    `db:"owner_username" json:"owner_username"`
	FileName      string    `db:"file_name"      json:"file_name"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
}
