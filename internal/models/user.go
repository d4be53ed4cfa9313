package models

import "time"

// User представляет пользователя системы.
// Тэги `db` используются для маппинга с полями БД с помощью sqlx.
// Тэги `json` используются для (де)сериализации JSON.
// Счетчики TotalUploads/TotalDownloads изменяются операциями
// загрузки/скачивания/удаления сниппетов.
type User struct {
	ID             int64     `db:"id"              json:"id"`
	Username       string    `db:"username"        json:"username"`
	PasswordHash   string    `db:"password_hash"   json:"-"` // Не отправляем хеш пароля в JSON
	TotalUploads   int64     `db:"total_uploads"   json:"total_uploads"`
	TotalDownloads int64     `db:"total_downloads" json:"total_downloads"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}

// RegisterRequest представляет тело запроса на регистрацию.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest представляет тело запроса на вход.
// TTLMinutes - необязательное время жизни сессии в минутах (по умолчанию 30).
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	TTLMinutes int    `json:"ttlMinutes,omitempty"`
}

// LoginResponse представляет тело ответа при успешном входе.
type LoginResponse struct {
	UserID  int64  `json:"userId"`
	Token   string `json:"token"`
	Message string `json:"message"`
}
