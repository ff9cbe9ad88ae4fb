package stream

import "errors"

var (
	// ErrRetryable — временный сбой даунстрима (сеть, троттлинг); батч
	// будет повторён consumer-ом.
	ErrRetryable = errors.New("retryable")
	// ErrPermanent — ошибка валидации/схемы; повторять бессмысленно.
	ErrPermanent = errors.New("permanent")
	// ErrTimeout — исполнение превысило потолок по стенным часам.
	ErrTimeout = errors.New("timeout")
)
