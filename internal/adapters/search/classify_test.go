package search

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/reybrally/order-pipeline/internal/app/stream"
)

func TestClassifyPermanent(t *testing.T) {
	for _, code := range []string{"22P02", "23505", "42703"} {
		err := classify(&pgconn.PgError{Code: code, Message: "bad data"})
		assert.ErrorIs(t, err, stream.ErrPermanent, code)
	}
}

func TestClassifyRetryable(t *testing.T) {
	// обрыв соединения, перегрузка, shutdown — всё временное
	for _, e := range []error{
		&pgconn.PgError{Code: "57P01", Message: "admin shutdown"},
		&pgconn.PgError{Code: "53300", Message: "too many connections"},
		errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
	} {
		assert.ErrorIs(t, classify(e), stream.ErrRetryable)
	}
}

func TestClassifyTimeout(t *testing.T) {
	err := classify(fmt.Errorf("query: %w", errors.New("context deadline exceeded")))
	assert.ErrorIs(t, err, stream.ErrTimeout)
}
