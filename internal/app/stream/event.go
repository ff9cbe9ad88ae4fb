package stream

import (
	"time"

	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

type MutationKind string

const (
	Insert MutationKind = "INSERT"
	Modify MutationKind = "MODIFY"
	Remove MutationKind = "REMOVE"
)

// MutationEvent — одно событие из фида изменений первичного хранилища.
// Порядок гарантирован только в пределах одного entityId.
type MutationEvent struct {
	Kind       MutationKind
	EntityID   string
	Image      attrvalue.Tree
	Sequence   string
	ObservedAt time.Time
}

// ClickEvent — одно клиентское событие кликстрима.
type ClickEvent struct {
	UserID     string             `json:"userId"`
	SessionID  string             `json:"sessionId"`
	EventType  string             `json:"eventType"`
	Timestamp  time.Time          `json:"timestamp"`
	Properties attrvalue.Document `json:"properties"`
}

// RecommendationEvent — то, что уходит в сервис рекомендаций.
type RecommendationEvent struct {
	TrackingID string             `json:"trackingId"`
	UserID     string             `json:"userId"`
	SessionID  string             `json:"sessionId"`
	EventType  string             `json:"eventType"`
	SentAt     time.Time          `json:"sentAt"`
	Properties attrvalue.Document `json:"properties"`
}
