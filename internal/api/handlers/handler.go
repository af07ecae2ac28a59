// handler.go — общие вспомогательные функции HTTP-обработчиков.
// Каждый доменный обработчик живёт в своём файле и делегирует
// бизнес-логику сервисному слою.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	apierrors "github.com/arturkryukov/clientportal/internal/api/errors"
	"github.com/arturkryukov/clientportal/internal/service"
)

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса в dst.
// Возвращает false и пишет 400, если тело некорректно.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: "+err.Error())
		return false
	}
	return true
}

// pageParams извлекает page и limit из query-параметров.
// По умолчанию page=1, limit=10 (настройки исходного портала).
func pageParams(r *http.Request) (page, limit int) {
	page, limit = 1, 10
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	return page, limit
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ
// стандартного формата.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrUploadState):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrBlobUnavailable):
		apierrors.UpstreamError(w, err.Error())
	default:
		apierrors.InternalError(w, err.Error())
	}
}
