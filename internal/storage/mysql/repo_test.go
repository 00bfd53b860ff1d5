package mysql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duckpond/internal/frame"
	"duckpond/internal/storage"
)

func TestRegistration(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotDSN string
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotDSN = cfg.DSN
		return &Repository{}, func() {}, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "u:p@tcp(db:3306)/wh"})
	require.NoError(t, err)
	defer repo.Close()
	assert.Equal(t, "u:p@tcp(db:3306)/wh", gotDSN)
}

func TestNewRepository_BadDSN(t *testing.T) {
	_, _, err := NewRepository(context.Background(), Config{DSN: "not a dsn"})
	require.Error(t, err)
}

func TestChunkRows(t *testing.T) {
	rows := make([][]any, 10)
	for i := range rows {
		rows[i] = []any{i}
	}
	chunks := chunkRows(rows, maxPlaceholders/4)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4)
	assert.Len(t, chunks[1], 4)
	assert.Len(t, chunks[2], 2)

	assert.Len(t, chunkRows(rows, 1), 1)
}

func TestIdentAndMapType(t *testing.T) {
	assert.Equal(t, "`a``b`", Ident("a`b"))
	assert.Equal(t, "DATETIME(6)", MapType(frame.Timestamp))
	assert.Equal(t, "LONGTEXT", MapType(frame.Text))
	assert.Equal(t, "DOUBLE", MapType(frame.Real))
}
