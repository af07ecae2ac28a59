// forum.go — обработчики форума /api/v1/forum.
// Темы, ответы и лайки; удаление доступно только автору.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/clientportal/internal/domain/model"
	"github.com/arturkryukov/clientportal/internal/service"
)

// ForumHandler — обработчик форума.
type ForumHandler struct {
	forum  *service.ForumService
	logger *slog.Logger
}

// NewForumHandler создаёт обработчик форума.
func NewForumHandler(forum *service.ForumService, logger *slog.Logger) *ForumHandler {
	return &ForumHandler{
		forum:  forum,
		logger: logger.With(slog.String("component", "forum_handler")),
	}
}

// threadResponse — API-представление темы форума.
type threadResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	AuthorName     string    `json:"author_name"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Category       string    `json:"category"`
	PostCount      int       `json:"post_count"`
	LikeCount      int       `json:"like_count"`
	CallerHasLiked bool      `json:"caller_has_liked"`
	CreatedAt      time.Time `json:"created_at"`
}

func toThreadResponse(th *model.Thread) threadResponse {
	return threadResponse{
		ID:             th.ID,
		UserID:         th.UserID,
		AuthorName:     th.AuthorName,
		Title:          th.Title,
		Content:        th.Content,
		Category:       th.Category,
		PostCount:      th.PostCount,
		LikeCount:      th.LikeCount,
		CallerHasLiked: th.CallerHasLiked,
		CreatedAt:      th.CreatedAt,
	}
}

// postResponse — API-представление ответа в теме.
type postResponse struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:         p.ID,
		ThreadID:   p.ThreadID,
		UserID:     p.UserID,
		AuthorName: p.AuthorName,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt,
	}
}

// createThreadRequest — тело POST /api/v1/forum/threads.
type createThreadRequest struct {
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// CreateThread — POST /api/v1/forum/threads.
func (h *ForumHandler) CreateThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	th, err := h.forum.CreateThread(r.Context(), req.UserID, req.Title, req.Content, req.Category)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toThreadResponse(th))
}

// threadsListResponse — ответ GET /api/v1/forum/threads.
type threadsListResponse struct {
	Threads []threadResponse `json:"threads"`
}

// ListThreads — GET /api/v1/forum/threads?search=&user_id=.
// search фильтрует по заголовку и тексту (ILIKE); user_id нужен
// для признака caller_has_liked.
func (h *ForumHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	threads, err := h.forum.ListThreads(r.Context(), q.Get("search"), q.Get("user_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := threadsListResponse{Threads: make([]threadResponse, 0, len(threads))}
	for _, th := range threads {
		resp.Threads = append(resp.Threads, toThreadResponse(th))
	}
	writeJSON(w, http.StatusOK, resp)
}

// threadWithPostsResponse — ответ GET /api/v1/forum/threads/{id}.
type threadWithPostsResponse struct {
	Thread threadResponse `json:"thread"`
	Posts  []postResponse `json:"posts"`
}

// GetThread — GET /api/v1/forum/threads/{id}?user_id=.
// Возвращает тему вместе со всеми ответами.
func (h *ForumHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	callerID := r.URL.Query().Get("user_id")

	result, err := h.forum.GetThread(r.Context(), id, callerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := threadWithPostsResponse{
		Thread: toThreadResponse(result.Thread),
		Posts:  make([]postResponse, 0, len(result.Posts)),
	}
	for _, p := range result.Posts {
		resp.Posts = append(resp.Posts, toPostResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// deleteRequest — тело запросов удаления с проверкой авторства.
type deleteRequest struct {
	UserID string `json:"user_id"`
}

// DeleteThread — DELETE /api/v1/forum/threads/{id}.
// Удалять тему может только автор, иначе 403.
func (h *ForumHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req deleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.forum.DeleteThread(r.Context(), id, req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "тема удалена"})
}

// createPostRequest — тело POST /api/v1/forum/posts.
type createPostRequest struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	Content  string `json:"content"`
}

// CreatePost — POST /api/v1/forum/posts.
func (h *ForumHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.forum.CreatePost(r.Context(), req.ThreadID, req.UserID, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(p))
}

// DeletePost — DELETE /api/v1/forum/posts/{id}.
// Удалять ответ может только автор, иначе 403.
func (h *ForumHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req deleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.forum.DeletePost(r.Context(), id, req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "ответ удалён"})
}

// likeRequest — тело POST /api/v1/forum/threads/{id}/like.
type likeRequest struct {
	UserID string `json:"user_id"`
}

// likeResponse — ответ переключения лайка.
type likeResponse struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// ToggleLike — POST /api/v1/forum/threads/{id}/like.
// Повторный вызов снимает лайк.
func (h *ForumHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req likeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	count, liked, err := h.forum.ToggleLike(r.Context(), id, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, likeResponse{Liked: liked, LikeCount: count})
}
