// internal/adapters/kafka/consumer.go
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kgo "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/reybrally/order-pipeline/internal/logging"
)

// Message — обертка над kafka-go с уже распарсенным Envelope.
type Message struct {
	Topic   string
	Key     []byte
	Headers map[string]string
	// Сырые байты, если нужно логировать/слать в DLQ
	Raw kgo.Message
	// Декодированный конверт с RawPayload (распарсим payload позднее по event_type)
	Envelope Envelope[json.RawMessage]
}

// BatchHandler получает батч целиком и обязан обработать записи в порядке
// доставки. Ошибка означает "передоставить весь батч".
type BatchHandler func(ctx context.Context, batch []Message) error

type Consumer interface {
	Subscribe(ctx context.Context, topic string, groupID string, handler BatchHandler) error
	Close() error
}

type ConsumerConfig struct {
	Brokers           []string
	ClientID          string
	MinBytes          int           // 1<<10
	MaxBytes          int           // 10<<20
	MaxWait           time.Duration // 100 * time.Millisecond
	SessionTimeout    time.Duration // 10 * time.Second
	RebalanceTimeout  time.Duration // 10 * time.Second
	HeartbeatInterval time.Duration // 3 * time.Second
	StartOffset       int64         // kgo.FirstOffset / kgo.LastOffset
	// Размер батча и backoff ретраев обработчика
	MaxBatch   int           // 100
	Backoff    time.Duration // 200 * time.Millisecond
	MaxBackoff time.Duration // 10 * time.Second, потолок backoff
}

// messageReader — то, что consume берёт от kafka-go Reader.
type messageReader interface {
	FetchMessage(ctx context.Context) (kgo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kgo.Message) error
}

type readerConsumer struct {
	cfg    ConsumerConfig
	reader *kgo.Reader // создаём per-topic в Subscribe
}

func NewConsumer(cfg ConsumerConfig) Consumer {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 100
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	return &readerConsumer{cfg: cfg}
}

func (c *readerConsumer) Subscribe(ctx context.Context, topic string, groupID string, handler BatchHandler) error {
	r := kgo.NewReader(kgo.ReaderConfig{
		Brokers:           c.cfg.Brokers,
		GroupID:           groupID,
		Topic:             topic,
		MinBytes:          c.cfg.MinBytes,
		MaxBytes:          c.cfg.MaxBytes,
		MaxWait:           c.cfg.MaxWait,
		StartOffset:       c.cfg.StartOffset,
		SessionTimeout:    c.cfg.SessionTimeout,
		RebalanceTimeout:  c.cfg.RebalanceTimeout,
		HeartbeatInterval: c.cfg.HeartbeatInterval,
	})
	c.reader = r
	defer r.Close()

	return c.consume(ctx, topic, groupID, r, handler)
}

// consume читает топик батчами: первое сообщение — блокирующе, остальные
// добираются в пределах MaxWait. Оффсеты коммитятся ТОЛЬКО после успешной
// обработки батча. Позиция reader-а уходит вперёд уже на FetchMessage,
// поэтому пропустить сбойный батч нельзя — следующий успешный коммит
// продвинул бы watermark группы мимо его оффсетов и записи бы пропали.
// Вместо этого обработчик ретраится на том же батче до успеха с потолком
// backoff: застрявший батч блокирует партицию — это и есть единственный
// механизм backpressure, обработчики обязаны быть идемпотентными.
func (c *readerConsumer) consume(ctx context.Context, topic, groupID string, r messageReader, handler BatchHandler) error {
	for {
		raws, err := c.fetchBatch(ctx, r)
		if err != nil {
			// Контекст закрыт — graceful shutdown
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			// Временная ошибка брокера — подождём и продолжим
			time.Sleep(200 * time.Millisecond)
			continue
		}
		if len(raws) == 0 {
			continue
		}

		batch := make([]Message, 0, len(raws))
		for _, m := range raws {
			batch = append(batch, toMessage(topic, m))
		}

		backoff := c.cfg.Backoff
		for attempt := 1; ; attempt++ {
			hErr := handler(ctx, batch)
			if hErr == nil {
				break
			}
			// если контекст умер — выходим тихо
			if ctx.Err() != nil {
				return nil
			}
			logging.LogError("kafka: batch handler failed, retrying same batch", hErr, logrus.Fields{
				"topic": topic, "group": groupID, "size": len(batch), "attempt": attempt,
			})
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			if backoff < c.cfg.MaxBackoff {
				backoff *= 2
				if backoff > c.cfg.MaxBackoff {
					backoff = c.cfg.MaxBackoff
				}
			}
		}

		if err := r.CommitMessages(ctx, raws...); err != nil {
			// ошибка коммита — батч придёт повторно, обработчики идемпотентны
			logging.LogError("kafka: commit failed", err, logrus.Fields{
				"topic": topic, "group": groupID,
			})
		}
	}
}

// fetchBatch блокируется на первом сообщении и добирает остальные, пока
// не наберётся MaxBatch или не истечёт MaxWait.
func (c *readerConsumer) fetchBatch(ctx context.Context, r messageReader) ([]kgo.Message, error) {
	first, err := r.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	out := []kgo.Message{first}

	maxWait := c.cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 100 * time.Millisecond
	}
	drainCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	for len(out) < c.cfg.MaxBatch {
		m, err := r.FetchMessage(drainCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break // добор окончен, основной контекст жив
			}
			return out, nil
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *readerConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

func toMessage(topic string, m kgo.Message) Message {
	hdrs := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		hdrs[h.Key] = string(h.Value)
	}
	var env Envelope[json.RawMessage]
	_ = json.Unmarshal(m.Value, &env) // намеренно игнорим ошибку здесь — handler может перепарсить сам
	return Message{
		Topic:    topic,
		Key:      m.Key,
		Headers:  hdrs,
		Raw:      m,
		Envelope: env,
	}
}
