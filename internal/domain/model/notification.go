package model

import "time"

// Notification — запись в персональном inbox пользователя.
// Хранится в таблице notifications. Создаётся файловым реестром
// при переходе документа в статус reviewed.
type Notification struct {
	// ID — UUID уведомления
	ID string
	// UserID — UUID получателя (FK на users)
	UserID string
	// Content — текст уведомления
	Content string
	// IsRead — флаг прочтения
	IsRead bool
	// CreatedAt — время создания
	CreatedAt time.Time
}

// NotificationPage — страница уведомлений с метаданными пагинации.
type NotificationPage struct {
	// Items — уведомления страницы (по убыванию created_at)
	Items []*Notification
	// TotalPages — общее количество страниц
	TotalPages int
	// CurrentPage — номер текущей страницы (с 1)
	CurrentPage int
}
