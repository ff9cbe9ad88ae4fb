package kafka

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/reybrally/order-pipeline/internal/app/stream"
	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

type Envelope[T any] struct {
	EventType  string    `json:"event_type"`  // "record.inserted" | "record.modified" | "record.removed"
	Version    int       `json:"version"`     // 1
	OccurredAt time.Time `json:"occurred_at"` // UTC
	EntityID   string    `json:"entity_id"`   // ключ партиционирования (= orderId)
	Payload    T         `json:"payload"`     // типизированный образ записи
	Meta       Meta      `json:"meta"`
}

type Meta struct {
	Producer string `json:"producer"` // "order-pipeline" | "seeder"
	TraceID  string `json:"trace_id"` // прокидывай из контекста
	Source   string `json:"source"`   // "primary-store" | "seeder" | ...
}

const (
	EventRecordInserted = "record.inserted"
	EventRecordModified = "record.modified"
	EventRecordRemoved  = "record.removed"
)

// DecodeMutation разбирает сообщение фида изменений в MutationEvent.
// Payload конверта — типизированное дерево атрибутов.
func DecodeMutation(msg Message) (stream.MutationEvent, error) {
	env := msg.Envelope

	var kind stream.MutationKind
	switch env.EventType {
	case EventRecordInserted:
		kind = stream.Insert
	case EventRecordModified:
		kind = stream.Modify
	case EventRecordRemoved:
		kind = stream.Remove
	default:
		return stream.MutationEvent{}, fmt.Errorf("%w: unknown event type %q", attrvalue.ErrMalformed, env.EventType)
	}

	var tree attrvalue.Tree
	if kind != stream.Remove {
		if len(env.Payload) == 0 {
			return stream.MutationEvent{}, fmt.Errorf("%w: empty image for %s", attrvalue.ErrMalformed, env.EntityID)
		}
		var err error
		tree, err = attrvalue.DecodeTree(env.Payload)
		if err != nil {
			return stream.MutationEvent{}, err
		}
	}

	entityID := env.EntityID
	if entityID == "" {
		entityID = string(msg.Key)
	}

	observedAt := env.OccurredAt
	if observedAt.IsZero() {
		observedAt = msg.Raw.Time
	}

	return stream.MutationEvent{
		Kind:       kind,
		EntityID:   entityID,
		Image:      tree,
		Sequence:   sequenceToken(msg),
		ObservedAt: observedAt.UTC(),
	}, nil
}

// sequenceToken — непрозрачный маркер позиции в партиции.
func sequenceToken(msg Message) string {
	return strings.Join([]string{
		msg.Topic,
		strconv.Itoa(msg.Raw.Partition),
		strconv.FormatInt(msg.Raw.Offset, 10),
	}, "/")
}
