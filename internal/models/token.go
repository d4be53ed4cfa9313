package models

import "time"

// Token представляет одну активную сессию пользователя.
// Значение токена - случайная непредсказуемая строка (UUID v4),
// сам токен ничего о пользователе не сообщает: каждая проверка - запрос в БД.
// Токен валиден, пока строка существует в таблице и не наступило время ExpiresAt.
type Token struct {
	Value     string    `db:"token"      json:"token"`
	UserID    int64     `db:"user_id"    json:"user_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// ValidateTokenRequest представляет тело запроса на проверку токена.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse представляет тело ответа при успешной проверке токена.
type ValidateTokenResponse struct {
	UserID int64 `json:"userId"`
}
