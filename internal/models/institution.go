package models

import "time"

const (
	ProviderPlaid   = "plaid"
	ProviderSandbox = "sandbox"

	ConnectionLinked = "linked"
)

// InstitutionConnection хранит ссылку на сессию связанного банковского счёта.
// AccessTokenRef содержит запечатанный токен провайдера, а не исходный секрет.
type InstitutionConnection struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"-"`
	Provider       string    `json:"provider"`
	Status         string    `json:"status"`
	AccessTokenRef string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
