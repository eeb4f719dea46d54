// Package models содержит доменные структуры сервиса: пользователя, подписку,
// решения пользователя, попытки отмены, журнал событий и подключения к банкам.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
