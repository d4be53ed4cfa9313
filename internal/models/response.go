package models

// ErrorResponse представляет тело ответа с ошибкой.
// Флаг LoggedOut сообщает клиенту, что сессия завершена и кешированный
// токен нужно выбросить, а не повторять запрос.
type ErrorResponse struct {
	Error     string `json:"error"`
	LoggedOut bool   `json:"loggedOut,omitempty"`
}

// MessageResponse представляет тело ответа с информационным сообщением.
type MessageResponse struct {
	Message string `json:"message"`
}
