package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/reybrally/order-pipeline/internal/app/stream"
	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

// Invoker изолирует побочные эффекты шагов: интерпретатор остаётся чистым
// управлением потоком.
type Invoker interface {
	Invoke(ctx context.Context, step State, input attrvalue.Document) (attrvalue.Document, error)
}

// Sender — канал уведомлений (email и т.п.).
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// PaymentFunc — внешний платёжный вызов. Возвращаемый ErrRetryable
// ретраится движком с экспоненциальным backoff.
type PaymentFunc func(ctx context.Context, input attrvalue.Document) (attrvalue.Document, error)

// StepInvoker — стандартная привязка шагов: оплата через PaymentFunc,
// уведомления через Sender, остальное — локальные эффекты.
type StepInvoker struct {
	Payments PaymentFunc
	Notify   Sender
	now      func() time.Time
}

func NewStepInvoker(payments PaymentFunc, notify Sender) *StepInvoker {
	return &StepInvoker{Payments: payments, Notify: notify, now: time.Now}
}

func (si *StepInvoker) Invoke(ctx context.Context, step State, input attrvalue.Document) (attrvalue.Document, error) {
	orderID := input.String("orderId")
	switch step {
	case StateProcessOrder:
		if orderID == "" {
			return nil, fmt.Errorf("%w: orderId is required", stream.ErrPermanent)
		}
		return attrvalue.Document{"processedAt": si.now().UTC().Format(time.RFC3339)}, nil

	case StateProcessPayment:
		if si.Payments == nil {
			return nil, fmt.Errorf("%w: no payment gateway configured", stream.ErrPermanent)
		}
		return si.Payments(ctx, input)

	case StateShipOrder:
		return attrvalue.Document{"shippedAt": si.now().UTC().Format(time.RFC3339)}, nil

	case StateNotifySuccess:
		return nil, si.send(ctx, input, "Order confirmed",
			fmt.Sprintf("Order %s: payment received.", orderID))
	case StateNotifyFailure:
		return nil, si.send(ctx, input, "Order failed",
			fmt.Sprintf("Order %s: payment was declined.", orderID))
	case StateNotifyShipment:
		return nil, si.send(ctx, input, "Order shipped",
			fmt.Sprintf("Order %s is on its way.", orderID))
	}
	return nil, fmt.Errorf("%w: unknown step %q", stream.ErrPermanent, step)
}

func (si *StepInvoker) send(ctx context.Context, input attrvalue.Document, subject, body string) error {
	if si.Notify == nil {
		return nil
	}
	to := input.String("customerEmail")
	if to == "" {
		return fmt.Errorf("%w: customerEmail is missing", stream.ErrPermanent)
	}
	return si.Notify.Send(ctx, to, subject, body)
}
