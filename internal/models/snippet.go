package models

import "time"

// Snippet представляет один сохраненный сниппет.
// Имя файла уникально в пределах одного владельца (не глобально).
// ObjectKey - указатель на зашифрованное содержимое в объектном хранилище;
// при каждом обновлении содержимого генерируется новый ключ объекта.
// Имя владельца денормализовано для отображения в дашборде.
type Snippet struct {
	ID            string    `db:"id"             json:"id"`
	OwnerID       int64     `db:"owner_id"       json:"owner_id"`
	OwnerUsername string    `db:"owner_username" json:"owner_username"`
	FileName      string    `db:"file_name"      json:"file_name"`
	FileType      string    `db:"file_type"      json:"file_type"`
	ObjectKey     string    `db:"object_key"     json:"object_key"`
	DownloadCount int64     `db:"download_count" json:"download_count"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`
}

// UploadRequest представляет тело запроса на загрузку сниппета.
type UploadRequest struct {
	FileName    string `json:"fileName"`
	FileContent string `json:"fileContent"`
}

// UploadResponse представляет тело ответа при успешной загрузке.
type UploadResponse struct {
	Message   string `json:"message"`
	SnippetID string `json:"snippetId"`
	ObjectKey string `json:"objectKey"`
}

// DownloadRequest представляет тело запроса на скачивание сниппета.
type DownloadRequest struct {
	FileName string `json:"fileName"`
}

// DownloadResponse представляет тело ответа при успешном скачивании.
type DownloadResponse struct {
	Message   string `json:"message"`
	SnippetID string `json:"snippetId"`
	Content   string `json:"content"`
}

// UpdateRequest представляет тело запроса на обновление содержимого.
type UpdateRequest struct {
	FileName    string `json:"fileName"`
	FileContent string `json:"fileContent"`
}

// UpdateResponse представляет тело ответа при успешном обновлении.
type UpdateResponse struct {
	Message   string    `json:"message"`
	SnippetID string    `json:"snippetId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeleteRequest представляет тело запроса на удаление сниппета.
type DeleteRequest struct {
	FileName string `json:"fileName"`
}

// DeleteResponse представляет тело ответа при успешном удалении.
type DeleteResponse struct {
	Message  string `json:"message"`
	FileName string `json:"fileName"`
}

// Допустимые действия для запроса на изменение прав доступа.
const (
	PermissionActionGrant  = "grant"
	PermissionActionRevoke = "revoke"
)

// PermissionRequest представляет тело запроса на выдачу/отзыв доступа.
type PermissionRequest struct {
	FileName       string `json:"fileName"`
	TargetUsername string `json:"targetUsername"`
	Action         string `json:"action"`
}

// DashboardSnippet представляет одну строку дашборда: сниппет,
// принадлежащий пользователю или доступный ему по набору доступа.
type DashboardSnippet struct {
	FileName        string    `json:"fileName"`
	Owner           string    `json:"owner"`
	LastModified    time.Time `json:"lastModified"`
	UsersWithAccess []string  `json:"usersWithAccess"`
}

// DashboardResponse представляет тело ответа дашборда.
type DashboardResponse struct {
	Message  string             `json:"message"`
	Account  string             `json:"account"`
	Snippets []DashboardSnippet `json:"snippets"`
}

// Summary представляет сводную статистику по аккаунту.
type Summary struct {
	Username            string           `json:"username"`
	TotalUploads        int64            `json:"totalUploads"`
	TotalDownloads      int64            `json:"totalDownloads"`
	MostActiveFileTypes map[string]int64 `json:"mostActiveFileTypes"`
}

// SummaryResponse представляет тело ответа со сводной статистикой.
type SummaryResponse struct {
	Message string  `json:"message"`
	Summary Summary `json:"summary"`
}
