package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/maynagashev/snipvault/internal/middleware"
	"github.com/maynagashev/snipvault/internal/models"
	"github.com/maynagashev/snipvault/internal/services"
)

// SnippetHandler обрабатывает HTTP-запросы для работы со сниппетами.
type SnippetHandler struct {
	snippetService services.SnippetService
}

// NewSnippetHandler создает новый экземпляр SnippetHandler.
func NewSnippetHandler(ss services.SnippetService) *SnippetHandler {
	return &SnippetHandler{snippetService: ss}
}

// Upload обрабатывает запрос на загрузку нового сниппета.
func (h *SnippetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[SnippetHandler] Не удалось получить UserID из контекста при загрузке")
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	var req models.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[SnippetHandler] Ошибка декодирования запроса загрузки: %v", err)
		writeError(w, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	if req.FileName == "" || req.FileContent == "" {
		writeError(w, http.StatusBadRequest, "Поля fileName и fileContent обязательны")
		return
	}

	snippet, err := h.snippetService.Upload(r.Context(), userID, req.FileName, req.FileContent)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateFileName) {
			writeError(w, http.StatusConflict, "Файл с таким именем уже существует в вашем аккаунте")
			return
		}
		log.Printf("[SnippetHandler] Ошибка загрузки '%s' пользователем %d: %v", req.FileName, userID, err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	writeJSON(w, http.StatusCreated, models.UploadResponse{
		Message:   "Сниппет успешно загружен",
		SnippetID: snippet.ID,
		ObjectKey: snippet.ObjectKey,
	})
}

// Download обрабатывает запрос на скачивание сниппета.
// Повторное скачивание той же тройки (пользователь, файл, владелец) дает 409.
func (h *SnippetHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[SnippetHandler] Не удалось получить UserID из контекста при скачивании")
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	var req models.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[SnippetHandler] Ошибка декодирования запроса скачивания: %v", err)
		writeError(w, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	if req.FileName == "" {
		writeError(w, http.StatusBadRequest, "Поле fileName обязательно")
		return
	}

	snippet, content, err := h.snippetService.Download(r.Context(), userID, req.FileName)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSnippetNotFound):
			writeError(w, http.StatusNotFound, "Сниппет не найден или недоступен")
		case errors.Is(err, services.ErrAlreadyDownloaded):
			writeError(w, http.StatusConflict, "Вы уже скачивали этот файл у этого пользователя")
		case errors.Is(err, services.ErrCorruptContent):
			writeError(w, http.StatusInternalServerError, "Содержимое сниппета повреждено")
		default:
			log.Printf("[SnippetHandler] Ошибка скачивания '%s' пользователем %d: %v", req.FileName, userID, err)
			writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		}
		return
	}

	writeJSON(w, http.StatusOK, models.DownloadResponse{
		Message:   "Сниппет успешно скачан",
		SnippetID: snippet.ID,
		Content:   content,
	})
}

// Update обрабатывает запрос на замену содержимого сниппета.
// Доступно владельцу и участникам набора доступа.
func (h *SnippetHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[SnippetHandler] Не удалось получить UserID из контекста при обновлении")
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	var req models.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[SnippetHandler] Ошибка декодирования запроса обновления: %v", err)
		writeError(w, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	if req.FileName == "" || req.FileContent == "" {
		writeError(w, http.StatusBadRequest, "Поля fileName и fileContent обязательны")
		return
	}

	snippet, updatedAt, err := h.snippetService.Update(r.Context(), userID, req.FileName, req.FileContent)
	if err != nil {
		if errors.Is(err, services.ErrSnippetNotFound) {
			writeError(w, http.StatusNotFound, "Сниппет не найден или недоступен")
			return
		}
		log.Printf("[SnippetHandler] Ошибка обновления '%s' пользователем %d: %v", req.FileName, userID, err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	writeJSON(w, http.StatusOK, models.UpdateResponse{
		Message:   "Сниппет успешно обновлен",
		SnippetID: snippet.ID,
		UpdatedAt: updatedAt,
	})
}

// Delete обрабатывает запрос на удаление сниппета. Только владелец:
// участник набора доступа получает 403, несуществующий файл - 404.
func (h *SnippetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[SnippetHandler] Не удалось получить UserID из контекста при удалении")
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	var req models.DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[SnippetHandler] Ошибка декодирования запроса удаления: %v", err)
		writeError(w, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	if req.FileName == "" {
		writeError(w, http.StatusBadRequest, "Поле fileName обязательно")
		return
	}

	if err := h.snippetService.Delete(r.Context(), userID, req.FileName); err != nil {
		switch {
		case errors.Is(err, services.ErrSnippetNotFound):
			writeError(w, http.StatusNotFound, "Сниппет не найден")
		case errors.Is(err, services.ErrNotOwner):
			writeError(w, http.StatusForbidden, "Удалять сниппет может только его владелец")
		default:
			log.Printf("[SnippetHandler] Ошибка удаления '%s' пользователем %d: %v", req.FileName, userID, err)
			writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		}
		return
	}

	writeJSON(w, http.StatusOK, models.DeleteResponse{
		Message:  "Сниппет успешно удален",
		FileName: req.FileName,
	})
}

// Permissions обрабатывает запрос на изменение набора доступа:
// action определяет выдачу (grant) или отзыв (revoke).
func (h *SnippetHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[SnippetHandler] Не удалось получить UserID из контекста при изменении доступа")
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	var req models.PermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[SnippetHandler] Ошибка декодирования запроса изменения доступа: %v", err)
		writeError(w, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	if req.FileName == "" || req.TargetUsername == "" {
		writeError(w, http.StatusBadRequest, "Поля fileName и targetUsername обязательны")
		return
	}

	var err error
	var message string
	switch req.Action {
	case models.PermissionActionGrant:
		err = h.snippetService.GrantAccess(r.Context(), userID, req.FileName, req.TargetUsername)
		message = "Доступ успешно выдан"
	case models.PermissionActionRevoke:
		err = h.snippetService.RevokeAccess(r.Context(), userID, req.FileName, req.TargetUsername)
		message = "Доступ успешно отозван"
	default:
		writeError(w, http.StatusBadRequest, "Поле action должно быть grant или revoke")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotOwner):
			writeError(w, http.StatusForbidden, "Менять доступ может только владелец сниппета")
		case errors.Is(err, services.ErrTargetUserNotFound):
			writeError(w, http.StatusNotFound, "Целевой пользователь не найден")
		default:
			log.Printf("[SnippetHandler] Ошибка изменения доступа к '%s' пользователем %d: %v",
				req.FileName, userID, err)
			writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		}
		return
	}

	writeJSON(w, http.StatusOK, models.MessageResponse{Message: message})
}

// Dashboard возвращает сниппеты, видимые пользователю: собственные
// и расшаренные ему другими владельцами.
func (h *SnippetHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[SnippetHandler] Не удалось получить UserID из контекста для дашборда")
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	account, snippets, err := h.snippetService.Dashboard(r.Context(), userID)
	if err != nil {
		log.Printf("[SnippetHandler] Ошибка получения дашборда пользователя %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	// Пустой список отдаем как [], а не null
	if snippets == nil {
		snippets = []models.DashboardSnippet{}
	}

	writeJSON(w, http.StatusOK, models.DashboardResponse{
		Message:  "Дашборд успешно получен",
		Account:  account,
		Snippets: snippets,
	})
}

// Summary возвращает сводную статистику аккаунта.
func (h *SnippetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[SnippetHandler] Не удалось получить UserID из контекста для сводки")
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	summary, err := h.snippetService.Summary(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "Пользователь не найден")
			return
		}
		log.Printf("[SnippetHandler] Ошибка получения сводки пользователя %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	writeJSON(w, http.StatusOK, models.SummaryResponse{
		Message: "Сводка успешно получена",
		Summary: *summary,
	})
}
