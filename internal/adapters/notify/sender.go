package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	kaf "github.com/reybrally/order-pipeline/internal/adapters/kafka"
	"github.com/reybrally/order-pipeline/internal/logging"
)

// KafkaSender публикует уведомления в топик, откуда их забирает внешний
// канал доставки (email и т.п.).
type KafkaSender struct {
	producer kaf.Producer
	topic    string
}

func NewKafkaSender(producer kaf.Producer, topic string) *KafkaSender {
	return &KafkaSender{producer: producer, topic: topic}
}

type notification struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

func (s *KafkaSender) Send(ctx context.Context, to, subject, body string) error {
	return s.producer.PublishJSON(ctx, s.topic, []byte(to), notification{
		To:      to,
		Subject: subject,
		Body:    body,
		SentAt:  time.Now().UTC(),
	}, nil)
}

// LogSender — dev-заглушка: уведомление уходит только в лог.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, subject, _ string) error {
	logging.LogInfo("notification", logrus.Fields{"to": to, "subject": subject})
	return nil
}
