package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/order-pipeline/internal/logging"
)

type ProcessResult struct {
	Forwarded   int // ушло в батч-sink
	Recommended int // ушло в сервис рекомендаций
}

// ClickstreamProcessor — фан-аут кликстрима: каждое событие best-effort
// уходит в сервис рекомендаций и безусловно — в буферизованный sink.
type ClickstreamProcessor struct {
	trackingID string
	recs       RecommendationPublisher
	sink       BatchAppender
	now        func() time.Time
}

func NewClickstreamProcessor(trackingID string, recs RecommendationPublisher, sink BatchAppender) *ClickstreamProcessor {
	return &ClickstreamProcessor{
		trackingID: trackingID,
		recs:       recs,
		sink:       sink,
		now:        time.Now,
	}
}

// Process обрабатывает батч сырых записей в порядке доставки. Ошибка
// декодирования обрывает остаток батча и возвращается вызывающему —
// consumer повторит батч целиком, поэтому даунстрим обязан быть
// идемпотентным. Сбой отправки рекомендации только логируется.
func (p *ClickstreamProcessor) Process(ctx context.Context, batch [][]byte) (ProcessResult, error) {
	var res ProcessResult
	for i, raw := range batch {
		var ev ClickEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return res, fmt.Errorf("clickstream: decode record %d: %w", i, err)
		}

		if ev.EventType != "" {
			rec := RecommendationEvent{
				TrackingID: p.trackingID,
				UserID:     ev.UserID,
				SessionID:  ev.SessionID,
				EventType:  ev.EventType,
				SentAt:     p.now().UTC(),
				Properties: ev.Properties,
			}
			if err := p.recs.Publish(ctx, rec); err != nil {
				logging.LogError("clickstream: recommendation publish failed", err, logrus.Fields{
					"user_id": ev.UserID, "event_type": ev.EventType,
				})
			} else {
				res.Recommended++
			}
		}

		if err := p.sink.Append(raw); err != nil {
			return res, fmt.Errorf("clickstream: append record %d: %w", i, err)
		}
		res.Forwarded++
	}
	return res, nil
}
