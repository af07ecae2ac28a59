package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arturkryukov/clientportal/internal/config"
	"github.com/arturkryukov/clientportal/internal/database"
	"github.com/arturkryukov/clientportal/internal/domain/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool и функцию очистки.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("clientportal_test"),
		postgres.WithUsername("clientportal"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("CP_DB_HOST", host)
	os.Setenv("CP_DB_PORT", port.Port())
	os.Setenv("CP_DB_NAME", "clientportal_test")
	os.Setenv("CP_DB_USER", "clientportal")
	os.Setenv("CP_DB_PASSWORD", "test-password")
	os.Setenv("CP_DB_SSL_MODE", "disable")
	os.Setenv("CP_JWT_ISSUER", "https://sso.example.com/realms/portal")
	os.Setenv("CP_JWT_JWKS_URL", "https://sso.example.com/realms/portal/protocol/openid-connect/certs")
	os.Setenv("CP_S3_ENDPOINT", "https://s3.example.com")
	os.Setenv("CP_S3_BUCKET", "portal-test")
	os.Setenv("CP_S3_ACCESS_KEY", "test")
	os.Setenv("CP_S3_SECRET_KEY", "test")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// createTestUser — вспомогательный помощник: создаёт пользователя для FK.
func createTestUser(t *testing.T, repo UserRepository, name string) *model.User {
	t.Helper()
	u := &model.User{
		ID:          uuid.New().String(),
		ExternalUID: "ext-" + uuid.New().String(),
		Name:        name,
		Email:       uuid.New().String() + "@example.com",
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Создание пользователя: %v", err)
	}
	return u
}

// --- Тесты UserRepository ---

func TestUserCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	userID := uuid.New().String()
	u := &model.User{
		ID:          userID,
		ExternalUID: "keycloak-user-001",
		Name:        "Alice Example",
		Email:       "Alice@Example.com",
	}

	// Create — email нормализуется в нижний регистр
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// GetByID
	got, err := repo.GetByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("Email = %q, хотели %q", got.Email, "alice@example.com")
	}

	// GetByExternalUID
	got2, err := repo.GetByExternalUID(ctx, "keycloak-user-001")
	if err != nil {
		t.Fatalf("GetByExternalUID() ошибка: %v", err)
	}
	if got2.ID != userID {
		t.Errorf("ID = %q, хотели %q", got2.ID, userID)
	}

	// GetByEmail — регистронезависимый поиск
	got3, err := repo.GetByEmail(ctx, "ALICE@example.COM")
	if err != nil {
		t.Fatalf("GetByEmail() ошибка: %v", err)
	}
	if got3.ID != userID {
		t.Errorf("ID = %q, хотели %q", got3.ID, userID)
	}

	// Дубликат email — ErrConflict
	dup := &model.User{
		ID:          uuid.New().String(),
		ExternalUID: "keycloak-user-002",
		Name:        "Alice Clone",
		Email:       "alice@example.com",
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Дубликат email: ожидали ErrConflict, получили: %v", err)
	}

	// Update
	u.Name = "Alice Updated"
	u.IsAdmin = true
	if err := repo.Update(ctx, u); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	got4, _ := repo.GetByID(ctx, userID)
	if got4.Name != "Alice Updated" || !got4.IsAdmin {
		t.Errorf("После Update: Name=%q, IsAdmin=%v", got4.Name, got4.IsAdmin)
	}

	// List
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() вернул %d записей, хотели 1", len(list))
	}

	// Delete
	if err := repo.Delete(ctx, userID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, userID); !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
}

// --- Тесты FileRegistryRepository ---

func TestFileRegistry(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	userRepo := NewUserRepository(pool)
	fileRepo := NewFileRegistryRepository(pool)

	owner := createTestUser(t, userRepo, "File Owner")
	other := createTestUser(t, userRepo, "Other User")

	hash := "a3f5c9d20000000000000000000000000000000000000000000000000000beef"
	f := &model.FileRecord{
		ID:           uuid.New().String(),
		UserID:       owner.ID,
		FileHash:     hash,
		Name:         "passport.pdf",
		ReviewStatus: model.StatusPending,
		UploadState:  model.UploadStateReserved,
	}

	// Register
	if err := fileRepo.Register(ctx, f); err != nil {
		t.Fatalf("Register() ошибка: %v", err)
	}

	// Дубликат хэша — ErrConflict, даже для другого пользователя
	dup := &model.FileRecord{
		ID:           uuid.New().String(),
		UserID:       other.ID,
		FileHash:     hash,
		Name:         "copy.pdf",
		ReviewStatus: model.StatusPending,
		UploadState:  model.UploadStateReserved,
	}
	if err := fileRepo.Register(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Дубликат хэша: ожидали ErrConflict, получили: %v", err)
	}

	// GetByHash
	got, err := fileRepo.GetByHash(ctx, hash)
	if err != nil {
		t.Fatalf("GetByHash() ошибка: %v", err)
	}
	if got.Name != "passport.pdf" || got.ReviewStatus != model.StatusPending {
		t.Errorf("GetByHash: Name=%q, ReviewStatus=%q", got.Name, got.ReviewStatus)
	}

	// Переводы состояния загрузки: reserved -> uploaded -> confirmed
	if _, err := fileRepo.UpdateUploadState(ctx, hash, model.UploadStateReserved, model.UploadStateUploaded); err != nil {
		t.Fatalf("UpdateUploadState(reserved->uploaded) ошибка: %v", err)
	}
	if _, err := fileRepo.UpdateUploadState(ctx, hash, model.UploadStateUploaded, model.UploadStateConfirmed); err != nil {
		t.Fatalf("UpdateUploadState(uploaded->confirmed) ошибка: %v", err)
	}

	// Неверный исходный статус — ErrNotFound (строка не подошла под WHERE)
	if _, err := fileRepo.UpdateUploadState(ctx, hash, model.UploadStateReserved, model.UploadStateUploaded); !errors.Is(err, ErrNotFound) {
		t.Errorf("Повторный переход reserved->uploaded: ожидали ErrNotFound, получили: %v", err)
	}

	// UpdateReviewStatus
	notes := "документ просрочен"
	updated, err := fileRepo.UpdateReviewStatus(ctx, hash, model.StatusReviewed, &notes)
	if err != nil {
		t.Fatalf("UpdateReviewStatus() ошибка: %v", err)
	}
	if updated.ReviewStatus != model.StatusReviewed {
		t.Errorf("ReviewStatus = %q, хотели %q", updated.ReviewStatus, model.StatusReviewed)
	}
	if updated.ReviewNotes == nil || *updated.ReviewNotes != notes {
		t.Errorf("ReviewNotes = %v, хотели %q", updated.ReviewNotes, notes)
	}

	// GetByHashes
	missing := "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	found, err := fileRepo.GetByHashes(ctx, []string{hash, missing})
	if err != nil {
		t.Fatalf("GetByHashes() ошибка: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("GetByHashes() вернул %d записей, хотели 1", len(found))
	}

	// ListByUser
	list, err := fileRepo.ListByUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListByUser() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListByUser() вернул %d записей, хотели 1", len(list))
	}

	// Delete — после удаления хэш снова свободен
	if err := fileRepo.Delete(ctx, hash); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if err := fileRepo.Register(ctx, dup); err != nil {
		t.Errorf("Повторная регистрация хэша после удаления: %v", err)
	}
}

func TestFileRegistryStaleReservations(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	userRepo := NewUserRepository(pool)
	fileRepo := NewFileRegistryRepository(pool)

	owner := createTestUser(t, userRepo, "Stale Owner")

	// Две резервации и один подтверждённый файл
	hashes := []string{
		"1111111111111111111111111111111111111111111111111111111111111111",
		"2222222222222222222222222222222222222222222222222222222222222222",
		"3333333333333333333333333333333333333333333333333333333333333333",
	}
	for _, h := range hashes {
		f := &model.FileRecord{
			ID:           uuid.New().String(),
			UserID:       owner.ID,
			FileHash:     h,
			Name:         "doc-" + h[:4] + ".pdf",
			ReviewStatus: model.StatusPending,
			UploadState:  model.UploadStateReserved,
		}
		if err := fileRepo.Register(ctx, f); err != nil {
			t.Fatalf("Register(%s) ошибка: %v", h[:4], err)
		}
	}
	if _, err := fileRepo.UpdateUploadState(ctx, hashes[2], model.UploadStateReserved, model.UploadStateUploaded); err != nil {
		t.Fatalf("UpdateUploadState() ошибка: %v", err)
	}
	if _, err := fileRepo.UpdateUploadState(ctx, hashes[2], model.UploadStateUploaded, model.UploadStateConfirmed); err != nil {
		t.Fatalf("UpdateUploadState() ошибка: %v", err)
	}

	// Cutoff в будущем — все резервации устаревшие
	stale, err := fileRepo.ListStaleReservations(ctx, time.Now().Add(time.Hour), 100)
	if err != nil {
		t.Fatalf("ListStaleReservations() ошибка: %v", err)
	}
	if len(stale) != 2 {
		t.Errorf("ListStaleReservations() вернул %d записей, хотели 2", len(stale))
	}
	for _, f := range stale {
		if f.UploadState == model.UploadStateConfirmed {
			t.Errorf("Подтверждённый файл %s попал в устаревшие резервации", f.FileHash)
		}
	}

	// Cutoff в прошлом — резерваций нет
	stale2, err := fileRepo.ListStaleReservations(ctx, time.Now().Add(-time.Hour), 100)
	if err != nil {
		t.Fatalf("ListStaleReservations() ошибка: %v", err)
	}
	if len(stale2) != 0 {
		t.Errorf("ListStaleReservations() с cutoff в прошлом вернул %d записей, хотели 0", len(stale2))
	}

	// DeleteReserved не трогает подтверждённый файл
	if err := fileRepo.DeleteReserved(ctx, hashes[2]); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteReserved(confirmed): ожидали ErrNotFound, получили: %v", err)
	}
	if err := fileRepo.DeleteReserved(ctx, hashes[0]); err != nil {
		t.Errorf("DeleteReserved(reserved) ошибка: %v", err)
	}
}

// --- Тесты NotificationRepository ---

func TestNotifications(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	userRepo := NewUserRepository(pool)
	notifRepo := NewNotificationRepository(pool)

	alice := createTestUser(t, userRepo, "Alice")
	bob := createTestUser(t, userRepo, "Bob")

	// 3 уведомления Алисе и 1 Бобу
	var aliceIDs []string
	for i := 0; i < 3; i++ {
		n := &model.Notification{
			ID:      uuid.New().String(),
			UserID:  alice.ID,
			Content: "Your document \"passport.pdf\" has been reviewed.",
		}
		if err := notifRepo.Create(ctx, n); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
		aliceIDs = append(aliceIDs, n.ID)
	}
	bobNotif := &model.Notification{
		ID:      uuid.New().String(),
		UserID:  bob.ID,
		Content: "Your document \"visa.pdf\" has been reviewed.",
	}
	if err := notifRepo.Create(ctx, bobNotif); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// ListByUser с пагинацией
	items, total, err := notifRepo.ListByUser(ctx, alice.ID, 2, 0)
	if err != nil {
		t.Fatalf("ListByUser() ошибка: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("ListByUser() вернул %d записей, хотели 2", len(items))
	}
	if total != 3 {
		t.Errorf("total = %d, хотели 3", total)
	}

	// MarkRead чужим пользователем — ErrNotFound, запись не меняется
	if _, err := notifRepo.MarkRead(ctx, aliceIDs[0], bob.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRead чужого: ожидали ErrNotFound, получили: %v", err)
	}
	untouched, err := notifRepo.GetByID(ctx, aliceIDs[0])
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if untouched.IsRead {
		t.Error("Уведомление Алисы помечено прочитанным чужим запросом")
	}

	// MarkRead владельцем
	marked, err := notifRepo.MarkRead(ctx, aliceIDs[0], alice.ID)
	if err != nil {
		t.Fatalf("MarkRead() ошибка: %v", err)
	}
	if !marked.IsRead {
		t.Error("IsRead = false после MarkRead")
	}

	// MarkRead несуществующего — ErrNotFound
	if _, err := notifRepo.MarkRead(ctx, uuid.New().String(), alice.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRead несуществующего: ожидали ErrNotFound, получили: %v", err)
	}

	// MarkAllRead затрагивает только непрочитанные и только Алису
	n, err := notifRepo.MarkAllRead(ctx, alice.ID)
	if err != nil {
		t.Fatalf("MarkAllRead() ошибка: %v", err)
	}
	if n != 2 {
		t.Errorf("MarkAllRead() пометил %d, хотели 2", n)
	}
	bobItems, _, _ := notifRepo.ListByUser(ctx, bob.ID, 10, 0)
	if len(bobItems) != 1 || bobItems[0].IsRead {
		t.Error("Уведомление Боба затронуто MarkAllRead чужого пользователя")
	}

	// Delete
	ownerID, err := notifRepo.Delete(ctx, aliceIDs[0])
	if err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if ownerID != alice.ID {
		t.Errorf("Delete() вернул владельца %s, хотели %s", ownerID, alice.ID)
	}
	_, total2, _ := notifRepo.ListByUser(ctx, alice.ID, 10, 0)
	if total2 != 2 {
		t.Errorf("После Delete total = %d, хотели 2", total2)
	}
}

// --- Тесты ForumRepository ---

func TestForum(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	userRepo := NewUserRepository(pool)
	forumRepo := NewForumRepository(pool)

	author := createTestUser(t, userRepo, "Thread Author")
	reader := createTestUser(t, userRepo, "Thread Reader")

	th := &model.Thread{
		ID:       uuid.New().String(),
		UserID:   author.ID,
		Title:    "Visa interview tips",
		Content:  "What should I expect in the interview?",
		Category: "visas",
	}
	if err := forumRepo.CreateThread(ctx, th); err != nil {
		t.Fatalf("CreateThread() ошибка: %v", err)
	}

	// GetThread с именем автора и нулевыми счётчиками
	got, err := forumRepo.GetThread(ctx, th.ID, reader.ID)
	if err != nil {
		t.Fatalf("GetThread() ошибка: %v", err)
	}
	if got.AuthorName != "Thread Author" {
		t.Errorf("AuthorName = %q, хотели %q", got.AuthorName, "Thread Author")
	}
	if got.PostCount != 0 || got.LikeCount != 0 || got.CallerHasLiked {
		t.Errorf("Счётчики новой темы: posts=%d, likes=%d, liked=%v", got.PostCount, got.LikeCount, got.CallerHasLiked)
	}

	// Посты
	p := &model.Post{
		ID:       uuid.New().String(),
		ThreadID: th.ID,
		UserID:   reader.ID,
		Content:  "Bring all your originals.",
	}
	if err := forumRepo.CreatePost(ctx, p); err != nil {
		t.Fatalf("CreatePost() ошибка: %v", err)
	}
	posts, err := forumRepo.ListPosts(ctx, th.ID)
	if err != nil {
		t.Fatalf("ListPosts() ошибка: %v", err)
	}
	if len(posts) != 1 || posts[0].AuthorName != "Thread Reader" {
		t.Errorf("ListPosts(): %d записей, AuthorName=%q", len(posts), posts[0].AuthorName)
	}

	// Лайк: переключение туда и обратно
	count, liked, err := forumRepo.ToggleLike(ctx, th.ID, reader.ID)
	if err != nil {
		t.Fatalf("ToggleLike() ошибка: %v", err)
	}
	if count != 1 || !liked {
		t.Errorf("ToggleLike: count=%d, liked=%v; хотели 1, true", count, liked)
	}
	count2, liked2, err := forumRepo.ToggleLike(ctx, th.ID, reader.ID)
	if err != nil {
		t.Fatalf("ToggleLike() повторный ошибка: %v", err)
	}
	if count2 != 0 || liked2 {
		t.Errorf("Повторный ToggleLike: count=%d, liked=%v; хотели 0, false", count2, liked2)
	}

	// Поиск по подстроке
	found, err := forumRepo.ListThreads(ctx, "interview", reader.ID)
	if err != nil {
		t.Fatalf("ListThreads() ошибка: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("ListThreads(search) вернул %d записей, хотели 1", len(found))
	}
	notFound, _ := forumRepo.ListThreads(ctx, "nonexistent-term", reader.ID)
	if len(notFound) != 0 {
		t.Errorf("ListThreads(мимо) вернул %d записей, хотели 0", len(notFound))
	}

	// Удаление темы каскадом удаляет посты
	if err := forumRepo.DeleteThread(ctx, th.ID); err != nil {
		t.Fatalf("DeleteThread() ошибка: %v", err)
	}
	if _, err := forumRepo.GetPost(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("После DeleteThread пост остался: %v", err)
	}
}

// --- Тесты AnnouncementRepository ---

func TestAnnouncements(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAnnouncementRepository(pool)

	a := &model.Announcement{
		ID:      uuid.New().String(),
		Title:   "Office closed",
		Content: "The office will be closed on Friday.",
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	got, err := repo.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if got.Title != "Office closed" {
		t.Errorf("Title = %q, хотели %q", got.Title, "Office closed")
	}

	list, total, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 1 || total != 1 {
		t.Errorf("List(): %d записей, total=%d; хотели 1, 1", len(list), total)
	}

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
}
