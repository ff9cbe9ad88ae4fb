package workflow

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

var (
	ErrAlreadyExists = errors.New("execution already exists")
	ErrNotFound      = errors.New("execution not found")
)

// Execution — одно исполнение workflow. Input неизменяем после старта;
// шаги пишут только в Output.
type Execution struct {
	Name      string             `json:"name"`
	State     State              `json:"state"`
	Input     attrvalue.Document `json:"input"`
	Output    attrvalue.Document `json:"output,omitempty"`
	Error     string             `json:"error,omitempty"`
	StartedAt time.Time          `json:"started_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ExecutionName детерминированно выводит имя исполнения из entityId и
// момента наблюдения события. Передоставка того же события в окне
// идемпотентности даёт то же имя — дубликат запуска невозможен.
func ExecutionName(entityID string, observedAt time.Time) string {
	return entityID + "-" + strconv.FormatInt(observedAt.UnixMilli(), 10)
}

// Store — хранилище исполнений. Create обязан быть атомарным "claim":
// повторный Create с тем же именем возвращает ErrAlreadyExists.
type Store interface {
	Create(ctx context.Context, e Execution) error
	Update(ctx context.Context, e Execution) error
	Get(ctx context.Context, name string) (Execution, error)
}
