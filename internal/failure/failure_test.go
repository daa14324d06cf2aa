package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain error", base, KindUnknown},
		{"tagged parse", New(KindParse, "summarize", base), KindParse},
		{"wrapped persistence", fmt.Errorf("commit: %w", New(KindPersistence, "tx", base)), KindPersistence},
		{"deadline exceeded", context.DeadlineExceeded, KindTransientIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestNewNil(t *testing.T) {
	assert.Nil(t, New(KindParse, "op", nil))
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := New(KindDecode, "extract", base)

	assert.ErrorIs(t, err, base)
	assert.Equal(t, "extract: decode: boom", err.Error())
	assert.False(t, IsTransient(err))
	assert.True(t, IsTransient(New(KindTransientIO, "list", base)))
}

func TestAs(t *testing.T) {
	fe := As(errors.New("x"))
	assert.Equal(t, KindUnknown, fe.Kind)
	assert.Nil(t, As(nil))
}
