package stream

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
	"github.com/reybrally/order-pipeline/internal/logging"
)

// SinkOutcome — результат доставки одного события в один sink.
// Sink == "" означает, что событие не дошло до фан-аута (битый образ).
type SinkOutcome struct {
	EntityID string
	Sequence string
	Sink     string
	Err      error
}

type DispatchResult struct {
	Accepted int // событий прошло фильтр
	Skipped  int // REMOVE и битые образы
	Outcomes []SinkOutcome
}

// Failed сообщает, были ли сбои, требующие передоставки батча.
func (r DispatchResult) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil && o.Sink != "" {
			return true
		}
	}
	return false
}

// Dispatcher разводит события фида изменений по зарегистрированным sink-ам.
// Состояния между вызовами не держит.
type Dispatcher struct {
	sinks []Sink
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Dispatch обрабатывает батч строго в порядке доставки. REMOVE отбрасывается
// (распространение удалений — вне контура). Для каждого принятого события
// образ нормализуется и документ доставляется каждому sink-у независимо:
// сбой одного sink-а не блокирует остальные. Битый образ — пропуск с логом,
// без ретрая.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []MutationEvent) DispatchResult {
	var res DispatchResult
	for _, ev := range batch {
		if ev.Kind != Insert && ev.Kind != Modify {
			res.Skipped++
			continue
		}

		doc, err := attrvalue.Normalize(ev.Image)
		if err != nil {
			res.Skipped++
			res.Outcomes = append(res.Outcomes, SinkOutcome{
				EntityID: ev.EntityID, Sequence: ev.Sequence, Err: err,
			})
			logging.LogError("dispatcher: malformed image, skipping", err, logrus.Fields{
				"entity_id": ev.EntityID, "sequence": ev.Sequence,
			})
			continue
		}

		res.Accepted++
		for _, s := range d.sinks {
			err := s.Deliver(ctx, ev.EntityID, doc, ev.ObservedAt)
			res.Outcomes = append(res.Outcomes, SinkOutcome{
				EntityID: ev.EntityID, Sequence: ev.Sequence, Sink: s.Name(), Err: err,
			})
			if err != nil {
				logging.LogError("dispatcher: sink delivery failed", err, logrus.Fields{
					"entity_id": ev.EntityID, "sink": s.Name(),
				})
			}
		}
	}
	return res
}
