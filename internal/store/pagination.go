package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"math"
	"time"

	"github.com/safar/shopcraft/internal/apperr"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type CursorPage[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

type OffsetPage[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func newOffsetPage[T any](items []T, total int64, page, pageSize int) *OffsetPage[T] {
	if items == nil {
		items = []T{}
	}
	return &OffsetPage[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}
}

// NormalizePage clamps page to >= 1 and pageSize to [1, MaxPageSize],
// falling back to DefaultPageSize.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

func offset(page, pageSize int) int {
	return (page - 1) * pageSize
}

type KeysetCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        int64     `json:"id"`
}

func EncodeCursor(cursor KeysetCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor returns a cursor positioned before every row when encoded is
// empty.
func DecodeCursor(encoded string) (KeysetCursor, error) {
	if encoded == "" {
		return KeysetCursor{
			CreatedAt: time.Now().Add(time.Hour),
			ID:        math.MaxInt64,
		}, nil
	}

	var cursor KeysetCursor
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return cursor, apperr.Wrap(apperr.InvalidArgument, err, "malformed cursor")
	}
	if err := json.Unmarshal(data, &cursor); err != nil {
		return cursor, apperr.Wrap(apperr.InvalidArgument, err, "malformed cursor")
	}
	return cursor, nil
}
