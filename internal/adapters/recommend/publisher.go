package recommend

import (
	"context"

	kaf "github.com/reybrally/order-pipeline/internal/adapters/kafka"
	"github.com/reybrally/order-pipeline/internal/app/stream"
)

// Publisher отправляет события рекомендаций в выделенный топик.
// Приём fire-and-forget: вызывающий только логирует сбой.
type Publisher struct {
	producer kaf.Producer
	topic    string
}

func NewPublisher(producer kaf.Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, ev stream.RecommendationEvent) error {
	// ключ = userId: события одного пользователя идут в одну партицию
	return p.producer.PublishJSON(ctx, p.topic, []byte(ev.UserID), ev, map[string]string{
		"tracking_id": ev.TrackingID,
	})
}
