package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status — единый статус подписки. Объединяет жизненный цикл подписки
// и состояние её отмены: pending/in_progress отмены соответствуют canceling,
// succeeded — canceled, failed — failed.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCanceling Status = "canceling"
	StatusCanceled  Status = "canceled"
	StatusFailed    Status = "failed"
)

// Valid сообщает, является ли значение допустимым статусом подписки.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCanceling, StatusCanceled, StatusFailed:
		return true
	}
	return false
}

const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

// Subscription — регулярная подписка пользователя, найденная сканированием
// или объявленная вручную.
type Subscription struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"-"`
	Merchant      string          `json:"merchant"`
	Plan          *string         `json:"plan"`
	Amount        decimal.Decimal `json:"amount"`
	Interval      string          `json:"interval"`
	NextRenewalAt *time.Time      `json:"next_renewal_at"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RenewalInfo используется планировщиком напоминаний и отправителем писем.
type RenewalInfo struct {
	SubscriptionID int64           `json:"subscription_id"`
	Email          string          `json:"email"`
	Merchant       string          `json:"merchant"`
	Amount         decimal.Decimal `json:"amount"`
	NextRenewalAt  time.Time       `json:"next_renewal_at"`
}
