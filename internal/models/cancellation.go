package models

import "time"

// CancelStatus — состояние отдельной попытки отмены подписки.
type CancelStatus string

const (
	CancelPending    CancelStatus = "pending"
	CancelInProgress CancelStatus = "in_progress"
	CancelSucceeded  CancelStatus = "succeeded"
	CancelFailed     CancelStatus = "failed"
)

const (
	MethodAuto     = "auto"
	MethodAssisted = "assisted"
)

// CancellationRequest — отслеживаемая попытка отменить одну подписку.
type CancellationRequest struct {
	ID             int64        `json:"id"`
	SubscriptionID int64        `json:"subscription_id"`
	UserID         int64        `json:"user_id"`
	Method         string       `json:"method"`
	Status         CancelStatus `json:"status"`
	VendorRef      *string      `json:"vendor_ref,omitempty"`
	Error          *string      `json:"error,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

// CancellationNotice публикуется в очередь уведомлений после успешной отмены.
type CancellationNotice struct {
	SubscriptionID int64     `json:"subscription_id"`
	RequestID      int64     `json:"request_id"`
	Email          string    `json:"email"`
	Merchant       string    `json:"merchant"`
	CompletedAt    time.Time `json:"completed_at"`
}
