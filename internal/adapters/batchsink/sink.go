package batchsink

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reybrally/order-pipeline/internal/logging"
)

type Config struct {
	StreamName      string
	Interval        time.Duration
	SizeThresholdMB int
	MaxRetries      int
	Backoff         time.Duration
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = "events"
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.SizeThresholdMB <= 0 {
		c.SizeThresholdMB = 1
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 200 * time.Millisecond
	}
	return c
}

var ErrClosed = errors.New("batch sink is closed")

// Sink копит записи и сбрасывает буфер по размеру или по таймеру — что
// наступит раньше; при лёгкой нагрузке срабатывает таймер. Сброс — атомарная
// передача: буфер подменяется под локом, прежний пишется вне лока, новые
// записи копятся в свежем. Неудачный сброс ретраится с backoff; исчерпав
// ретраи, записи уходят в error-раздел (партиционирован по дате и типу
// сбоя), но не теряются.
type Sink struct {
	cfg       Config
	writer    ObjectWriter
	sizeLimit int

	mu       sync.Mutex
	buf      [][]byte
	bufBytes int
	closed   bool

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup

	now func() time.Time
}

func New(writer ObjectWriter, cfg Config) *Sink {
	cfg = cfg.withDefaults()
	s := &Sink{
		cfg:       cfg,
		writer:    writer,
		sizeLimit: cfg.SizeThresholdMB << 20,
		ticker:    time.NewTicker(cfg.Interval),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Append добавляет запись в буфер; достижение порога размера немедленно
// инициирует сброс.
func (s *Sink) Append(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.buf = append(s.buf, cp)
	s.bufBytes += len(cp)

	if s.bufBytes < s.sizeLimit {
		s.mu.Unlock()
		return nil
	}
	records := s.takeLocked()
	// Add под локом: Close, успевший выставить closed, уже не пройдёт Wait
	// раньше регистрации этого сброса
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.write(records)
	}()
	return nil
}

// Close сбрасывает остаток буфера и дожидается всех записей.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	records := s.takeLocked()
	s.mu.Unlock()

	s.ticker.Stop()
	close(s.done)
	if len(records) > 0 {
		s.write(records)
	}
	s.wg.Wait()
	return nil
}

func (s *Sink) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.mu.Lock()
			records := s.takeLocked()
			s.mu.Unlock()
			if len(records) > 0 {
				s.write(records)
			}
		case <-s.done:
			return
		}
	}
}

// takeLocked подменяет буфер; вызывать только под локом.
func (s *Sink) takeLocked() [][]byte {
	records := s.buf
	s.buf = nil
	s.bufBytes = 0
	return records
}

func (s *Sink) write(records [][]byte) {
	payload := bytes.Join(records, []byte("\n"))
	payload = append(payload, '\n')

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(payload); err != nil {
		// gzip в память не падает на валидном вводе; на всякий случай — в error-раздел
		s.writeError(records, "compress-failure", err)
		return
	}
	if err := zw.Close(); err != nil {
		s.writeError(records, "compress-failure", err)
		return
	}

	key := s.objectKey(s.cfg.StreamName, "gz")
	if err := s.putWithRetry(key, gz.Bytes()); err != nil {
		s.writeError(records, "put-failure", err)
		return
	}
	logging.LogInfo("batchsink: flushed", logrus.Fields{
		"key": key, "records": len(records), "bytes": gz.Len(),
	})
}

// writeError уводит несброшенные записи в error-раздел без компрессии.
func (s *Sink) writeError(records [][]byte, failureType string, cause error) {
	payload := bytes.Join(records, []byte("\n"))
	payload = append(payload, '\n')

	key := s.errorKey(failureType)
	if err := s.putWithRetry(key, payload); err != nil {
		// хранилище лежит целиком: записи будут видны только в логе
		logging.LogError("batchsink: error-output write failed, records stuck", err, logrus.Fields{
			"key": key, "records": len(records), "cause": cause.Error(),
		})
		return
	}
	logging.LogError("batchsink: flush failed, records routed to error output", cause, logrus.Fields{
		"key": key, "records": len(records), "failure_type": failureType,
	})
}

func (s *Sink) putWithRetry(key string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var lastErr error
	backoff := s.cfg.Backoff
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return lastErr
			}
			backoff *= 2
		}
		if lastErr = s.writer.Put(ctx, key, data); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (s *Sink) objectKey(prefix, ext string) string {
	t := s.now().UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%02d/%s-%d-%s.%s",
		prefix, t.Year(), t.Month(), t.Day(), t.Hour(),
		s.cfg.StreamName, t.UnixMilli(), uuid.New().String()[:8], ext)
}

func (s *Sink) errorKey(failureType string) string {
	t := s.now().UTC()
	return fmt.Sprintf("errors/%s/%04d/%02d/%02d/%s-%d-%s.jsonl",
		failureType, t.Year(), t.Month(), t.Day(),
		s.cfg.StreamName, t.UnixMilli(), uuid.New().String()[:8])
}
