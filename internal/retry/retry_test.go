package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsletter-digest/internal/failure"

	"github.com/stretchr/testify/assert"
)

var fast = Policy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}

func TestDo(t *testing.T) {
	transient := failure.New(failure.KindTransientIO, "op", errors.New("timeout"))
	permanent := failure.New(failure.KindParse, "op", errors.New("bad json"))

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{"success first try", []error{nil}, 1, nil},
		{"transient then success", []error{transient, nil}, 2, nil},
		{"permanent is not retried", []error{permanent}, 1, permanent},
		{"attempts exhausted", []error{transient, transient, transient, nil}, 3, transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fast, "test", func(ctx context.Context) error {
				e := tt.errs[calls]
				calls++
				return e
			})

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Policy{Attempts: 5, Initial: time.Second, Max: time.Second, Multiplier: 2}, "test", func(ctx context.Context) error {
		calls++
		return failure.New(failure.KindTransientIO, "op", errors.New("down"))
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
