// files.go — обработчики файлового реестра /api/v1/files.
// Регистрация документа с presigned URL, двухфазное подтверждение
// загрузки, проверка существования хэшей, смена статуса проверки.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/clientportal/internal/api/errors"
	"github.com/arturkryukov/clientportal/internal/domain/model"
	"github.com/arturkryukov/clientportal/internal/service"
)

// FilesHandler — обработчик файлового реестра.
type FilesHandler struct {
	files  *service.FileRegistryService
	logger *slog.Logger
}

// NewFilesHandler создаёт обработчик файлового реестра.
func NewFilesHandler(files *service.FileRegistryService, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		files:  files,
		logger: logger.With(slog.String("component", "files_handler")),
	}
}

// fileResponse — API-представление записи файлового реестра.
type fileResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	FileHash     string    `json:"file_hash"`
	Name         string    `json:"name"`
	ReviewStatus string    `json:"review_status"`
	UploadState  string    `json:"upload_state"`
	ReviewNotes  *string   `json:"review_notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toFileResponse(f *model.FileRecord) fileResponse {
	return fileResponse{
		ID:           f.ID,
		UserID:       f.UserID,
		FileHash:     f.FileHash,
		Name:         f.Name,
		ReviewStatus: f.ReviewStatus,
		UploadState:  f.UploadState,
		ReviewNotes:  f.ReviewNotes,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// registerRequest — тело POST /api/v1/files.
type registerRequest struct {
	UserID   string `json:"user_id"`
	FileHash string `json:"file_hash"`
	FileName string `json:"file_name"`
}

// registerResponse — ответ POST /api/v1/files.
type registerResponse struct {
	File      fileResponse `json:"file"`
	UploadURL string       `json:"upload_url"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Register — POST /api/v1/files.
// Резервирует хэш в реестре и возвращает presigned URL для загрузки
// содержимого в blob store.
func (h *FilesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.files.Register(r.Context(), req.UserID, req.FileHash, req.FileName)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		File:      toFileResponse(result.File),
		UploadURL: result.UploadURL,
		ExpiresAt: result.ExpiresAt,
	})
}

// MarkUploaded — POST /api/v1/files/{hash}/uploaded.
// Клиент сообщает об успешной передаче байтов в blob store.
func (h *FilesHandler) MarkUploaded(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	f, err := h.files.MarkUploaded(r.Context(), hash)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(f))
}

// Confirm — POST /api/v1/files/{hash}/confirm.
// Финальный шаг двухфазной загрузки: документ становится видимым.
func (h *FilesHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	f, err := h.files.Confirm(r.Context(), hash)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(f))
}

// existsResponse — ответ GET /api/v1/files/{hash}.
type existsResponse struct {
	Exists bool `json:"exists"`
}

// Exists — GET /api/v1/files/{hash}.
// Проверка глобального существования хэша до попытки регистрации.
func (h *FilesHandler) Exists(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	exists, err := h.files.Exists(r.Context(), hash)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}

// batchCheckEntry — элемент ответа пакетной проверки хэшей.
type batchCheckEntry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// batchCheckResponse — ответ GET /api/v1/files?hashes=...
type batchCheckResponse struct {
	Files map[string]batchCheckEntry `json:"files"`
}

// listResponse — ответ GET /api/v1/files?user_id=...
type listResponse struct {
	Files []fileResponse `json:"files"`
}

// List — GET /api/v1/files.
// Два режима: ?hashes= — пакетная проверка хэшей,
// ?user_id= — все файлы пользователя. Без параметров — 400.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if hashes, ok := q["hashes"]; ok {
		records, err := h.files.BatchCheck(r.Context(), hashes)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := batchCheckResponse{Files: make(map[string]batchCheckEntry, len(records))}
		for _, rec := range records {
			resp.Files[rec.FileHash] = batchCheckEntry{
				Name:   rec.Name,
				Status: rec.ReviewStatus,
			}
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if userID := q.Get("user_id"); userID != "" {
		records, err := h.files.ListByUser(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := listResponse{Files: make([]fileResponse, 0, len(records))}
		for _, rec := range records {
			resp.Files = append(resp.Files, toFileResponse(rec))
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	apierrors.ValidationError(w, "требуется параметр hashes или user_id")
}

// reviewRequest — тело PATCH /api/v1/files.
type reviewRequest struct {
	FileHash string  `json:"file_hash"`
	Status   string  `json:"status"`
	Notes    *string `json:"notes,omitempty"`
}

// reviewResponse — ответ PATCH /api/v1/files.
// Warning заполняется, когда статус обновлён, но владельца уведомить
// не удалось.
type reviewResponse struct {
	File    fileResponse `json:"file"`
	Warning string       `json:"warning,omitempty"`
}

// UpdateReview — PATCH /api/v1/files.
// Смена статуса проверки документа администратором. Переход в reviewed
// создаёт уведомление владельцу.
func (h *FilesHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.files.UpdateReviewStatus(r.Context(), req.FileHash, req.Status, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := reviewResponse{File: toFileResponse(result.File)}
	if result.OrphanedOwner {
		resp.Warning = "статус обновлён, но уведомить владельца не удалось"
	}

	writeJSON(w, http.StatusOK, resp)
}

// Delete — DELETE /api/v1/files/{hash}.
// Удаляет запись реестра, затем best-effort содержимое в blob store.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	if err := h.files.Delete(r.Context(), hash); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "файл удалён"})
}
