package models

import "time"

const (
	DecisionApprove = "approve"
	DecisionDeny    = "deny"
)

// Approval — неизменяемая запись решения пользователя по подписке.
// Повторные решения не схлопываются: каждое решение — отдельная строка.
type Approval struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	SubscriptionID int64     `json:"subscription_id"`
	Decision       string    `json:"decision"`
	DecidedAt      time.Time `json:"decided_at"`
}
