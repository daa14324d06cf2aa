package store

import (
	"context"
	"strings"
	"time"

	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/metrics"

	"github.com/jackc/pgx/v5"
)

type traceKey struct{}

type traceData struct {
	start time.Time
	sql   string
}

// SlowQueryTracer logs and counts queries slower than the threshold
type SlowQueryTracer struct {
	slowThreshold time.Duration
}

func NewSlowQueryTracer(slowThreshold time.Duration) *SlowQueryTracer {
	if slowThreshold == 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &SlowQueryTracer{slowThreshold: slowThreshold}
}

func (t *SlowQueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceData{start: time.Now(), sql: data.SQL})
}

func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	td, ok := ctx.Value(traceKey{}).(traceData)
	if !ok {
		return
	}

	duration := time.Since(td.start)
	if duration <= t.slowThreshold {
		return
	}

	sql := strings.Join(strings.Fields(td.sql), " ")
	if len(sql) > 200 {
		sql = sql[:200] + "..."
	}

	entry := logging.Log.WithField("sql", sql).WithField("took", duration.String())
	if data.Err != nil {
		entry = entry.WithError(data.Err)
	}
	entry.Warn("slow-query")

	command := "unknown"
	if fields := strings.Fields(sql); len(fields) > 0 {
		command = strings.ToUpper(fields[0])
	}
	metrics.IncrementSlowQuery(command)
}
