// notifications.go — обработчики персонального inbox /api/v1/notifications.
// Чтение страницы идёт через LRU-кэш сервисного слоя; любая запись
// инвалидирует префикс пользователя.
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

// NotificationsHandler — обработчик уведомлений.
type NotificationsHandler struct {
	notifications *service.NotificationService
	logger        *slog.Logger
}

// NewNotificationsHandler создаёт обработчик уведомлений.
func NewNotificationsHandler(notifications *service.NotificationService, logger *slog.Logger) *NotificationsHandler {
	return &NotificationsHandler{
		notifications: notifications,
		logger:        logger.With(slog.String("component", "notifications_handler")),
	}
}

// notificationResponse — API-представление уведомления.
type notificationResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationResponse(n *model.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Content:   n.Content,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// notificationPageResponse — страница уведомлений с пагинацией.
type notificationPageResponse struct {
	Notifications []notificationResponse `json:"notifications"`
	TotalPages    int                    `json:"total_pages"`
	CurrentPage   int                    `json:"current_page"`
}

// List — GET /api/v1/notifications?user_id=&page=&limit=.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		apierrors.ValidationError(w, "требуется параметр user_id")
		return
	}
	page, limit := pageParams(r)

	result, err := h.notifications.ListPage(r.Context(), userID, page, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := notificationPageResponse{
		Notifications: make([]notificationResponse, 0, len(result.Items)),
		TotalPages:    result.TotalPages,
		CurrentPage:   result.CurrentPage,
	}
	for _, n := range result.Items {
		resp.Notifications = append(resp.Notifications, toNotificationResponse(n))
	}

	writeJSON(w, http.StatusOK, resp)
}

// MarkRead — PATCH /api/v1/notifications/{id}?user_id=.
// Помечает одно уведомление прочитанным. Чужое уведомление — 403.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		apierrors.ValidationError(w, "требуется параметр user_id")
		return
	}

	n, err := h.notifications.MarkRead(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNotificationResponse(n))
}

// markAllResponse — ответ PATCH /api/v1/notifications.
type markAllResponse struct {
	Updated int `json:"updated"`
}

// MarkAllRead — PATCH /api/v1/notifications?user_id=.
// Помечает все уведомления пользователя прочитанными.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		apierrors.ValidationError(w, "требуется параметр user_id")
		return
	}

	n, err := h.notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, markAllResponse{Updated: n})
}

// Delete — DELETE /api/v1/notifications/{id}.
func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.notifications.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "уведомление удалено"})
}
