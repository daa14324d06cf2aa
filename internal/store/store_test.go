package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/digest?sslmode=disable", "pgx5://u:p@localhost:5432/digest?sslmode=disable"},
		{"postgresql://localhost/digest", "pgx5://localhost/digest"},
		{"pgx5://localhost/digest", "pgx5://localhost/digest"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, migrateURL(tt.in))
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(pgx.ErrNoRows))
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "x", *nullable("x"))
}

func TestSlowQueryTracerCarriesStart(t *testing.T) {
	tracer := NewSlowQueryTracer(0)
	assert.Equal(t, 100*time.Millisecond, tracer.slowThreshold)

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	td, ok := ctx.Value(traceKey{}).(traceData)

	assert.True(t, ok)
	assert.Equal(t, "SELECT 1", td.sql)

	// under the threshold: no panic, nothing recorded
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
}

func TestWithTxHonorsCancelBeforeBegin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Store{}
	called := false
	err := s.WithTx(ctx, func(Tx) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
