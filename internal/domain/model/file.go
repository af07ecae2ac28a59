package model

import "time"

// Статусы проверки документа. Закрытое перечисление:
// уведомление отправляется только при переходе в StatusReviewed.
const (
	// StatusPending — документ загружен, ожидает проверки.
	StatusPending = "pending evaluation"
	// StatusReviewed — документ проверен администратором.
	StatusReviewed = "reviewed"
)

// Состояния двухфазной загрузки файла.
// Запись резервируется до передачи байтов в blob store,
// поэтому между шагами возможен обрыв — зависшие reserved-записи
// убирает фоновый reconciler.
const (
	// UploadStateReserved — хэш зарезервирован, байты ещё не загружены.
	UploadStateReserved = "reserved"
	// UploadStateUploaded — клиент сообщил об успешной загрузке в blob store.
	UploadStateUploaded = "uploaded"
	// UploadStateConfirmed — загрузка подтверждена, файл виден в портале.
	UploadStateConfirmed = "confirmed"
)

// ValidReviewStatus проверяет, входит ли статус в закрытое перечисление.
func ValidReviewStatus(s string) bool {
	return s == StatusPending || s == StatusReviewed
}

// FileRecord — запись документа в файловом реестре.
// Хранится в таблице files. Содержимое лежит во внешнем blob store
// по ключу users/{userID}/uploads/{fileHash}; fileHash — глобально
// уникальная content-addressable идентичность документа.
type FileRecord struct {
	// ID — UUID записи
	ID string
	// UserID — UUID владельца (FK на users)
	UserID string
	// FileHash — контрольная сумма содержимого (глобально уникальна)
	FileHash string
	// Name — отображаемое имя документа
	Name string
	// ReviewStatus — статус проверки (pending evaluation, reviewed)
	ReviewStatus string
	// UploadState — состояние загрузки (reserved, uploaded, confirmed)
	UploadState string
	// ReviewNotes — комментарий администратора при проверке
	ReviewNotes *string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
