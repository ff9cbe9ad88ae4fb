package stream

import (
	"context"
	"time"

	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

// Sink — независимый получатель нормализованных документов.
// Deliver обязан быть идемпотентным: сбойные батчи повторяются целиком.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, entityID string, doc attrvalue.Document, observedAt time.Time) error
}

// RecommendationPublisher — fire-and-forget приём событий рекомендаций.
type RecommendationPublisher interface {
	Publish(ctx context.Context, ev RecommendationEvent) error
}

// BatchAppender — буферизованный батч-sink (см. adapters/batchsink).
type BatchAppender interface {
	Append(data []byte) error
}
