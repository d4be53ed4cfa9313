package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/maynagashev/snipvault/internal/models"
)

// writeJSON отправляет ответ с указанным статусом и JSON-телом.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Статус уже отправлен клиенту, остается только залогировать
		log.Printf("[Handlers] Ошибка кодирования JSON-ответа: %v", err)
	}
}

// writeError отправляет структурированное тело ошибки.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

// writeLoggedOutError отправляет ошибку сессии с флагом loggedOut:
// клиент должен выбросить кешированный токен, а не повторять запрос.
func writeLoggedOutError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message, LoggedOut: true})
}
