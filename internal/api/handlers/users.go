// users.go — обработчики пользователей /api/v1/users.
// Учётная запись создаётся после первого входа через внешний IdP;
// признак администратора хранится локально.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/clientportal/internal/api/errors"
	"github.com/arturkryukov/clientportal/internal/api/middleware"
	"github.com/arturkryukov/clientportal/internal/domain/model"
	"github.com/arturkryukov/clientportal/internal/service"
)

// UsersHandler — обработчик пользователей.
type UsersHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUsersHandler создаёт обработчик пользователей.
func NewUsersHandler(users *service.UserService, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{
		users:  users,
		logger: logger.With(slog.String("component", "users_handler")),
	}
}

// userResponse — API-представление пользователя.
type userResponse struct {
	ID          string    `json:"id"`
	ExternalUID string    `json:"external_uid"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		ExternalUID: u.ExternalUID,
		Name:        u.Name,
		Email:       u.Email,
		IsAdmin:     u.IsAdmin,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// createUserRequest — тело POST /api/v1/users.
type createUserRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	ExternalUID string `json:"external_uid"`
}

// Create — POST /api/v1/users.
// Email приводится к нижнему регистру; дубликат email или UID — 409.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.Create(r.Context(), req.Name, req.Email, req.ExternalUID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// usersListResponse — ответ GET /api/v1/users без фильтров.
type usersListResponse struct {
	Users []userResponse `json:"users"`
}

// List — GET /api/v1/users.
// ?email= или ?external_uid= — поиск одного профиля (включая is_admin,
// исходный маршрут checkAdmin). Без фильтров — полный список, только
// администраторам.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if email := q.Get("email"); email != "" {
		u, err := h.users.GetByEmail(r.Context(), email)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(u))
		return
	}

	if uid := q.Get("external_uid"); uid != "" {
		u, err := h.users.GetByExternalUID(r.Context(), uid)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(u))
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil || !claims.IsAdmin {
		apierrors.Forbidden(w, "список пользователей доступен только администратору")
		return
	}

	list, err := h.users.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := usersListResponse{Users: make([]userResponse, 0, len(list))}
	for _, u := range list {
		resp.Users = append(resp.Users, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get — GET /api/v1/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// updateUserRequest — тело PUT /api/v1/users/{id}.
// Поля-указатели: nil означает «не менять».
type updateUserRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Update — PUT /api/v1/users/{id}.
// Частичное обновление имени и email (исходный маршрут Updateemail).
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.Update(r.Context(), id, req.Name, req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Delete — DELETE /api/v1/users/{id}.
// Каскадно удаляет файлы (с содержимым blob store), уведомления
// и форумный контент пользователя в одной транзакции.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "пользователь удалён"})
}
