package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{
			name: "not found",
			err:  New(ErrKindNotFound, "no such tile"),
			pred: IsNotFound,
			want: true,
		},
		{
			name: "query failed",
			err:  Wrap(ErrKindQueryFailed, "bad sql", errors.New("syntax error")),
			pred: IsQueryFailed,
			want: true,
		},
		{
			name: "startup failed",
			err:  New(ErrKindStartupFailed, "introspection failed"),
			pred: IsStartupFailed,
			want: true,
		},
		{
			name: "wrapped with fmt.Errorf",
			err:  fmt.Errorf("layer water: %w", New(ErrKindConnectionFailed, "db down")),
			pred: IsConnectionFailed,
			want: true,
		},
		{
			name: "plain error is unknown",
			err:  errors.New("boom"),
			pred: IsQueryFailed,
			want: false,
		},
		{
			name: "kind mismatch",
			err:  New(ErrKindTimeout, "deadline"),
			pred: IsNotFound,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred(tt.err))
		})
	}
}

func TestErrorString(t *testing.T) {
	e := Wrap(ErrKindQueryFailed, "tile fetch failed", errors.New("relation missing"))
	assert.Equal(t, "[query_failed] tile fetch failed: relation missing", e.Error())

	bare := New(ErrKindStartupFailed, "pool creation failed")
	assert.Equal(t, "[startup_failed] pool creation failed", bare.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := Wrap(ErrKindTimeout, "slow", cause)
	assert.True(t, errors.Is(e, cause))
}
