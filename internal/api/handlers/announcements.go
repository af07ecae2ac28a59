// announcements.go — обработчики объявлений /api/v1/announcements.
// Чтение доступно всем аутентифицированным, публикация и удаление —
// только администраторам (RequireAdmin на уровне маршрутов).
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/clientportal/internal/domain/model"
	"github.com/arturkryukov/clientportal/internal/service"
)

// AnnouncementsHandler — обработчик объявлений.
type AnnouncementsHandler struct {
	announcements *service.AnnouncementService
	logger        *slog.Logger
}

// NewAnnouncementsHandler создаёт обработчик объявлений.
func NewAnnouncementsHandler(announcements *service.AnnouncementService, logger *slog.Logger) *AnnouncementsHandler {
	return &AnnouncementsHandler{
		announcements: announcements,
		logger:        logger.With(slog.String("component", "announcements_handler")),
	}
}

// announcementResponse — API-представление объявления.
type announcementResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toAnnouncementResponse(a *model.Announcement) announcementResponse {
	return announcementResponse{
		ID:        a.ID,
		Title:     a.Title,
		Content:   a.Content,
		CreatedAt: a.CreatedAt,
	}
}

// announcementPageResponse — страница объявлений.
type announcementPageResponse struct {
	Announcements []announcementResponse `json:"announcements"`
	TotalPages    int                    `json:"total_pages"`
	CurrentPage   int                    `json:"current_page"`
}

// List — GET /api/v1/announcements?page=&limit=.
// Объявления по убыванию created_at.
func (h *AnnouncementsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	result, err := h.announcements.ListPage(r.Context(), page, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := announcementPageResponse{
		Announcements: make([]announcementResponse, 0, len(result.Items)),
		TotalPages:    result.TotalPages,
		CurrentPage:   result.CurrentPage,
	}
	for _, a := range result.Items {
		resp.Announcements = append(resp.Announcements, toAnnouncementResponse(a))
	}

	writeJSON(w, http.StatusOK, resp)
}

// createAnnouncementRequest — тело POST /api/v1/announcements.
type createAnnouncementRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Create — POST /api/v1/announcements (только администратор).
func (h *AnnouncementsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAnnouncementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.announcements.Create(r.Context(), req.Title, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAnnouncementResponse(a))
}

// Delete — DELETE /api/v1/announcements/{id} (только администратор).
func (h *AnnouncementsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.announcements.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "объявление удалено"})
}
