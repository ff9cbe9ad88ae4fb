package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/order-pipeline/internal/app/stream"
	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
	"github.com/reybrally/order-pipeline/internal/logging"
)

type EngineConfig struct {
	Timeout        time.Duration // потолок исполнения по стенным часам
	PaymentRetries int
	PaymentBackoff time.Duration
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.PaymentRetries <= 0 {
		c.PaymentRetries = 5
	}
	if c.PaymentBackoff <= 0 {
		c.PaymentBackoff = 200 * time.Millisecond
	}
	return c
}

// Engine — интерпретатор графа состояний. Продвижение состояния принадлежит
// только движку и сериализовано по имени исполнения.
type Engine struct {
	store   Store
	invoker Invoker
	cfg     EngineConfig
	now     func() time.Time

	mu      sync.Mutex
	running map[string]*sync.Mutex
}

func NewEngine(store Store, invoker Invoker, cfg EngineConfig) *Engine {
	return &Engine{
		store:   store,
		invoker: invoker,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		running: make(map[string]*sync.Mutex),
	}
}

// Start начинает исполнение с данным именем и синхронно доводит его до
// терминального состояния. Повторный Start с тем же именем — успех без
// второго запуска: возвращается уже существующее исполнение.
func (e *Engine) Start(ctx context.Context, name string, input attrvalue.Document) (Execution, error) {
	if name == "" {
		return Execution{}, fmt.Errorf("%w: execution name is empty", stream.ErrPermanent)
	}

	now := e.now().UTC()
	exec := Execution{
		Name:      name,
		State:     StateProcessOrder,
		Input:     input,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Create(ctx, exec); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			existing, gerr := e.store.Get(ctx, name)
			if gerr != nil {
				return Execution{}, fmt.Errorf("%w: %v", stream.ErrRetryable, gerr)
			}
			logging.LogInfo("workflow: duplicate start treated as success", logrus.Fields{"name": name})
			return existing, nil
		}
		return Execution{}, fmt.Errorf("%w: claim execution: %v", stream.ErrRetryable, err)
	}

	return e.run(ctx, exec), nil
}

// StartAsync — то же, но исполнение продолжается в фоне (операторский API).
func (e *Engine) StartAsync(name string, input attrvalue.Document) {
	go func() {
		if _, err := e.Start(context.Background(), name, input); err != nil {
			logging.LogError("workflow: async start failed", err, logrus.Fields{"name": name})
		}
	}()
}

// Status возвращает исполнение по имени.
func (e *Engine) Status(ctx context.Context, name string) (Execution, error) {
	return e.store.Get(ctx, name)
}

// run крутит интерпретатор до терминального состояния. Переход атомарен:
// шаг либо завершился и состояние записано, либо исполнение помечено Failed.
// Таймаут проверяется только между шагами — побочный вызов не обрывается
// на середине.
func (e *Engine) run(ctx context.Context, exec Execution) Execution {
	lock := e.lockFor(exec.Name)
	lock.Lock()
	defer func() {
		lock.Unlock()
		e.mu.Lock()
		delete(e.running, exec.Name)
		e.mu.Unlock()
	}()

	deadline := exec.StartedAt.Add(e.cfg.Timeout)

	for !exec.State.Terminal() {
		// отмена контекста — не таймаут: в записи остаётся её причина
		if err := ctx.Err(); err != nil {
			exec.Error = err.Error()
			e.transition(ctx, &exec, StateFailed)
			logging.LogError("workflow: execution canceled", err, logrus.Fields{
				"name": exec.Name, "state": string(exec.State),
			})
			return exec
		}
		if e.now().After(deadline) {
			exec.Error = stream.ErrTimeout.Error()
			e.transition(ctx, &exec, StateFailed)
			logging.LogError("workflow: execution timed out", stream.ErrTimeout, logrus.Fields{
				"name": exec.Name, "state": string(exec.State),
			})
			return exec
		}

		out, err := e.invokeStep(ctx, exec.State, exec.Input)
		if err != nil {
			if exec.State.notify() {
				// уведомления — fire-and-forget: лог и дальше по графу
				logging.LogError("workflow: notification failed", err, logrus.Fields{
					"name": exec.Name, "state": string(exec.State),
				})
			} else {
				exec.Error = err.Error()
				e.transition(ctx, &exec, StateFailed)
				return exec
			}
		}
		for k, v := range out {
			if exec.Output == nil {
				exec.Output = attrvalue.Document{}
			}
			exec.Output[k] = v
		}

		e.transition(ctx, &exec, next(exec.State, exec.Input))
	}
	return exec
}

func (e *Engine) transition(ctx context.Context, exec *Execution, to State) {
	exec.State = to
	exec.UpdatedAt = e.now().UTC()
	if err := e.store.Update(ctx, *exec); err != nil {
		// состояние в памяти уже продвинуто; запись догонит на следующем
		// переходе, терминальную запись теряем только вместе с хранилищем
		logging.LogError("workflow: state update failed", err, logrus.Fields{
			"name": exec.Name, "state": string(to),
		})
	}
}

// invokeStep вызывает шаг; ProcessPayment ретраится с ограниченным
// экспоненциальным backoff на временных сбоях.
func (e *Engine) invokeStep(ctx context.Context, step State, input attrvalue.Document) (attrvalue.Document, error) {
	if step != StateProcessPayment {
		return e.invoker.Invoke(ctx, step, input)
	}

	var lastErr error
	backoff := e.cfg.PaymentBackoff
	for attempt := 0; attempt <= e.cfg.PaymentRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
		out, err := e.invoker.Invoke(ctx, step, input)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !errors.Is(err, stream.ErrRetryable) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("payment retries exhausted: %w", lastErr)
}

func (e *Engine) lockFor(name string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.running[name]; ok {
		return l
	}
	l := &sync.Mutex{}
	e.running[name] = l
	return l
}
