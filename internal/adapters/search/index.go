package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reybrally/order-pipeline/internal/app/stream"
	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

const (
	qUpsert = `INSERT INTO search_documents (doc_id, doc, indexed_at)
VALUES ($1, $2, now())
ON CONFLICT (doc_id) DO UPDATE SET
    doc        = EXCLUDED.doc,
    indexed_at = EXCLUDED.indexed_at;`

	qGet = `SELECT doc, indexed_at FROM search_documents WHERE doc_id = $1;`

	qSearch = `SELECT doc_id, doc, indexed_at FROM search_documents
WHERE doc @> $1
ORDER BY indexed_at DESC
LIMIT $2;`

	// Schema — под миграцию/тестовую инициализацию.
	Schema = `CREATE TABLE IF NOT EXISTS search_documents (
    doc_id     text PRIMARY KEY,
    doc        jsonb NOT NULL,
    indexed_at timestamptz NOT NULL DEFAULT now()
);`
)

// Index — поисковый индекс документов поверх Postgres.
type Index struct {
	pool *pgxpool.Pool
}

func NewIndex(pool *pgxpool.Pool) *Index { return &Index{pool: pool} }

type IndexedDocument struct {
	DocID     string             `json:"doc_id"`
	Doc       attrvalue.Document `json:"doc"`
	IndexedAt time.Time          `json:"indexed_at"`
}

// Upsert записывает документ под стабильным id. Повторные записи с тем же
// id — идемпотентная замена; побеждает порядок доставки, а не исходная метка
// времени события: передоставка устаревшего образа вне порядка может
// перетереть более новый документ (известное принятое ограничение).
func (ix *Index) Upsert(ctx context.Context, entityID string, doc attrvalue.Document) error {
	if entityID == "" {
		return fmt.Errorf("%w: empty document id", stream.ErrPermanent)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode document %s: %v", stream.ErrPermanent, entityID, err)
	}
	if _, err := ix.pool.Exec(ctx, qUpsert, entityID, data); err != nil {
		return classify(err)
	}
	return nil
}

// Get читает сохранённый документ (верификация, операторский API).
func (ix *Index) Get(ctx context.Context, entityID string) (IndexedDocument, error) {
	var (
		data      []byte
		indexedAt time.Time
	)
	err := ix.pool.QueryRow(ctx, qGet, entityID).Scan(&data, &indexedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IndexedDocument{}, fmt.Errorf("document %s: %w", entityID, ErrDocNotFound)
		}
		return IndexedDocument{}, classify(err)
	}
	var doc attrvalue.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return IndexedDocument{}, fmt.Errorf("%w: decode document %s: %v", stream.ErrPermanent, entityID, err)
	}
	return IndexedDocument{DocID: entityID, Doc: doc, IndexedAt: indexedAt}, nil
}

// Search — простой containment-запрос по полю документа.
func (ix *Index) Search(ctx context.Context, field string, value any, limit int) ([]IndexedDocument, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	filter, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("%w: encode filter: %v", stream.ErrPermanent, err)
	}
	rows, err := ix.pool.Query(ctx, qSearch, filter, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []IndexedDocument
	for rows.Next() {
		var (
			id        string
			data      []byte
			indexedAt time.Time
		)
		if err := rows.Scan(&id, &data, &indexedAt); err != nil {
			return nil, classify(err)
		}
		var doc attrvalue.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: decode document %s: %v", stream.ErrPermanent, id, err)
		}
		out = append(out, IndexedDocument{DocID: id, Doc: doc, IndexedAt: indexedAt})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ErrDocNotFound — документа с таким id в индексе нет.
var ErrDocNotFound = errors.New("document not found")

// classify делит ошибки Postgres на постоянные (данные/схема) и временные
// (связность, перегрузка): классы 22 и 23 — ретраить бессмысленно,
// остальное транспорт передоставит.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		class := ""
		if len(pgErr.Code) >= 2 {
			class = pgErr.Code[:2]
		}
		switch class {
		case "22", "23", "42":
			return fmt.Errorf("%w: %s", stream.ErrPermanent, pgErr.Message)
		}
	}
	if strings.Contains(err.Error(), "context deadline exceeded") {
		return fmt.Errorf("%w: %v", stream.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", stream.ErrRetryable, err)
}
