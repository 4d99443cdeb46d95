package store

import (
	"testing"
	"time"

	"github.com/safar/shopcraft/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name             string
		page, pageSize   int
		wantPage, wantPS int
	}{
		{"defaults", 0, 0, 1, DefaultPageSize},
		{"negative page", -3, 10, 1, 10},
		{"too large", 2, MaxPageSize + 1, 2, DefaultPageSize},
		{"max allowed", 4, MaxPageSize, 4, MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, pageSize := NormalizePage(tt.page, tt.pageSize)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPS, pageSize)
		})
	}
}

func TestOffsetPageTotals(t *testing.T) {
	page := newOffsetPage[int](nil, 41, 1, 20)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 40, offset(3, 20))
}

func TestCursorRoundTrip(t *testing.T) {
	want := KeysetCursor{CreatedAt: time.Date(2024, 5, 1, 10, 30, 0, 123456000, time.UTC), ID: 77}

	got, err := DecodeCursor(EncodeCursor(want))
	require.NoError(t, err)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.ID, got.ID)
}

func TestDecodeCursor(t *testing.T) {
	start, err := DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, start.CreatedAt.After(time.Now()))

	_, err = DecodeCursor("%%%")
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))

	_, err = DecodeCursor("bm90LWpzb24=")
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}
