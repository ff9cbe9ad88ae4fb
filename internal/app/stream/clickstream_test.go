package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecs struct {
	events   []RecommendationEvent
	failWith error
}

func (f *fakeRecs) Publish(_ context.Context, ev RecommendationEvent) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.events = append(f.events, ev)
	return nil
}

type fakeAppender struct {
	records  [][]byte
	failWith error
}

func (f *fakeAppender) Append(data []byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.records = append(f.records, data)
	return nil
}

func click(t *testing.T, userID, eventType string) []byte {
	t.Helper()
	raw, err := json.Marshal(ClickEvent{
		UserID:    userID,
		SessionID: "sess-1",
		EventType: eventType,
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Properties: map[string]any{
			"page": "/catalog",
		},
	})
	require.NoError(t, err)
	return raw
}

func TestProcessFanOut(t *testing.T) {
	recs := &fakeRecs{}
	sink := &fakeAppender{}
	p := NewClickstreamProcessor("trk-1", recs, sink)

	res, err := p.Process(context.Background(), [][]byte{
		click(t, "u1", "product_view"),
		click(t, "u2", ""), // без eventType — только в батч-sink
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Forwarded)
	assert.Equal(t, 1, res.Recommended)
	require.Len(t, recs.events, 1)
	assert.Equal(t, "trk-1", recs.events[0].TrackingID)
	assert.Equal(t, "u1", recs.events[0].UserID)
	assert.Equal(t, "product_view", recs.events[0].EventType)
	assert.Len(t, sink.records, 2)
}

func TestProcessMalformedAbortsRemainder(t *testing.T) {
	recs := &fakeRecs{}
	sink := &fakeAppender{}
	p := NewClickstreamProcessor("trk-1", recs, sink)

	// первая независимая партия проходит целиком
	_, err := p.Process(context.Background(), [][]byte{click(t, "u0", "add_to_cart")})
	require.NoError(t, err)
	require.Len(t, sink.records, 1)

	res, err := p.Process(context.Background(), [][]byte{
		click(t, "u1", "product_view"),
		[]byte("{not json"),
		click(t, "u2", "purchase"),
	})
	require.Error(t, err)

	// до битой записи — обработано, после — нет; прежняя партия не тронута
	assert.Equal(t, 1, res.Forwarded)
	assert.Len(t, sink.records, 2)
	for _, ev := range recs.events {
		assert.NotEqual(t, "u2", ev.UserID)
	}
}

func TestProcessRecommendationFailureIsBestEffort(t *testing.T) {
	recs := &fakeRecs{failWith: errors.New("throttled")}
	sink := &fakeAppender{}
	p := NewClickstreamProcessor("trk-1", recs, sink)

	res, err := p.Process(context.Background(), [][]byte{click(t, "u1", "product_view")})
	require.NoError(t, err)

	// сбой рекомендаций не прерывает запись
	assert.Equal(t, 1, res.Forwarded)
	assert.Equal(t, 0, res.Recommended)
	assert.Len(t, sink.records, 1)
}

func TestProcessAppendFailureAborts(t *testing.T) {
	recs := &fakeRecs{}
	sink := &fakeAppender{failWith: errors.New("buffer closed")}
	p := NewClickstreamProcessor("trk-1", recs, sink)

	res, err := p.Process(context.Background(), [][]byte{click(t, "u1", "product_view")})
	require.Error(t, err)
	assert.Equal(t, 0, res.Forwarded)
}
