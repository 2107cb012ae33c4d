// Package audit は認証イベントの監査記録を提供します。
//
// イベントにはパスワードやセッショントークンを含めません。
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType は監査イベントの種別を表します。
type EventType string

const (
	EventLoginSucceeded EventType = "login.succeeded"
	EventLoginFailed    EventType = "login.failed"
	EventLoginLocked    EventType = "login.locked"
	EventLogout         EventType = "logout"
)

// Event は1件の監査イベントです。
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"userId,omitempty"`
	Username  string    `json:"username,omitempty"`
	ClientIP  string    `json:"clientIp,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	At        time.Time `json:"at"`
}

// NewEvent は ID と発生時刻を埋めたイベントを作成します。
func NewEvent(eventType EventType) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: eventType,
		At:   time.Now().UTC(),
	}
}
