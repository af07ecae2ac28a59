// Пакет model — доменные модели Client Portal.
package model

import "time"

// User — пользователь портала.
// Создаётся при первом подтверждённом входе через внешний Identity Provider.
// Хранится в таблице users.
type User struct {
	// ID — UUID пользователя
	ID string
	// ExternalUID — идентификатор субъекта во внешнем IdP (sub из JWT)
	ExternalUID string
	// Name — отображаемое имя
	Name string
	// Email — адрес электронной почты (уникальный, нижний регистр)
	Email string
	// IsAdmin — флаг администратора
	IsAdmin bool
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
