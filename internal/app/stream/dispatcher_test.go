package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
	"github.com/reybrally/order-pipeline/internal/logging"
)

func init() { logging.InitLogger() }

type fakeSink struct {
	name      string
	failWith  error
	delivered map[string]attrvalue.Document // последний документ по entityId
	calls     int
}

func newFakeSink(name string) *fakeSink {
	return &fakeSink{name: name, delivered: map[string]attrvalue.Document{}}
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Deliver(_ context.Context, entityID string, doc attrvalue.Document, _ time.Time) error {
	s.calls++
	if s.failWith != nil {
		return s.failWith
	}
	s.delivered[entityID] = doc
	return nil
}

func mutation(kind MutationKind, id string) MutationEvent {
	return MutationEvent{
		Kind:     kind,
		EntityID: id,
		Image: attrvalue.Tree{
			"orderId":       attrvalue.String(id),
			"paymentStatus": attrvalue.String("SUCCESS"),
		},
		Sequence:   "seq-" + id,
		ObservedAt: time.Unix(1700000000, 0),
	}
}

func TestDispatchFiltersRemove(t *testing.T) {
	search := newFakeSink("search")
	d := NewDispatcher(search)

	res := d.Dispatch(context.Background(), []MutationEvent{
		mutation(Insert, "a"),
		mutation(Remove, "b"),
		mutation(Modify, "c"),
	})

	assert.Equal(t, 2, res.Accepted)
	assert.Equal(t, 1, res.Skipped)
	assert.False(t, res.Failed())
	assert.Contains(t, search.delivered, "a")
	assert.Contains(t, search.delivered, "c")
	assert.NotContains(t, search.delivered, "b")
}

func TestDispatchSinkIsolation(t *testing.T) {
	broken := newFakeSink("workflow")
	broken.failWith = ErrRetryable
	search := newFakeSink("search")

	d := NewDispatcher(broken, search)
	res := d.Dispatch(context.Background(), []MutationEvent{mutation(Insert, "a")})

	// сбой одного sink-а не мешает доставке в другой
	assert.Contains(t, search.delivered, "a")
	assert.True(t, res.Failed())

	var failed, ok int
	for _, o := range res.Outcomes {
		if o.Err != nil {
			failed++
			assert.Equal(t, "workflow", o.Sink)
		} else {
			ok++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, ok)
}

func TestDispatchMalformedImageSkipped(t *testing.T) {
	search := newFakeSink("search")
	d := NewDispatcher(search)

	bad := MutationEvent{
		Kind:     Insert,
		EntityID: "bad",
		Image:    attrvalue.Tree{"x": {}}, // без тега
	}
	res := d.Dispatch(context.Background(), []MutationEvent{bad, mutation(Insert, "good")})

	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 1, res.Skipped)
	// битый образ — permanent: батч не считается сбойным
	assert.False(t, res.Failed())
	assert.Equal(t, 1, search.calls)

	require.NotEmpty(t, res.Outcomes)
	assert.True(t, errors.Is(res.Outcomes[0].Err, attrvalue.ErrMalformed))
	assert.Empty(t, res.Outcomes[0].Sink)
}

func TestDispatchRedeliveryIsIdempotent(t *testing.T) {
	search := newFakeSink("search")
	d := NewDispatcher(search)

	batch := []MutationEvent{mutation(Insert, "a"), mutation(Modify, "a")}
	first := d.Dispatch(context.Background(), batch)
	require.False(t, first.Failed())
	want := search.delivered["a"]

	// передоставка того же батча — то же итоговое состояние
	second := d.Dispatch(context.Background(), batch)
	require.False(t, second.Failed())
	assert.Equal(t, want, search.delivered["a"])
	assert.Len(t, search.delivered, 1)
}
