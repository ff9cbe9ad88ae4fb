package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/order-pipeline/internal/app/stream"
	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
	"github.com/reybrally/order-pipeline/internal/logging"
)

// Starter — sink фида изменений: на каждый принятый документ запускает
// одно исполнение workflow. Имя исполнения детерминировано, поэтому
// передоставка того же события не порождает второй запуск.
type Starter struct {
	engine *Engine
}

func NewStarter(engine *Engine) *Starter { return &Starter{engine: engine} }

func (s *Starter) Name() string { return "workflow-starter" }

func (s *Starter) Deliver(ctx context.Context, entityID string, doc attrvalue.Document, observedAt time.Time) error {
	if entityID == "" {
		return fmt.Errorf("%w: empty entity id", stream.ErrPermanent)
	}
	name := ExecutionName(entityID, observedAt)
	exec, err := s.engine.Start(ctx, name, doc)
	if err != nil {
		return err
	}
	logging.LogInfo("workflow: execution finished", logrus.Fields{
		"name": name, "state": string(exec.State),
	})
	return nil
}
