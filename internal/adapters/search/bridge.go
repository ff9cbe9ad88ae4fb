package search

import (
	"context"
	"time"

	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

// Bridge — sink фида изменений поверх индекса: id документа = entityId.
type Bridge struct {
	index *Index
}

func NewBridge(index *Index) *Bridge { return &Bridge{index: index} }

func (b *Bridge) Name() string { return "search-index" }

func (b *Bridge) Deliver(ctx context.Context, entityID string, doc attrvalue.Document, _ time.Time) error {
	return b.index.Upsert(ctx, entityID, doc)
}
