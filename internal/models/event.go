package models

import (
	"encoding/json"
	"time"
)

// Типы событий журнала.
const (
	EventScanFake              = "scan.fake"
	EventScanReal              = "scan.real"
	EventCancelStart           = "cancel.start"
	EventCancelQueued          = "cancel.queued"
	EventCancelDone            = "cancel.done"
	EventCancelFailed          = "cancel.failed"
	EventCancelAutostartFailed = "cancel.autostart_failed"
	EventInstitutionLinked     = "institution.linked"
	EventSubscriptionRemoved   = "subscription.removed"
)

// ApprovalEventType возвращает тип события для решения approve/deny.
func ApprovalEventType(decision string) string {
	return "approval." + decision
}

// Event — запись журнала действий пользователя. Только добавляется.
type Event struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"-"`
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
