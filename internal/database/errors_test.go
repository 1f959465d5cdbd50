package database

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/tilecraft/postserve/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{
			name: "nil stays nil",
			err:  nil,
			want: errs.ErrKindUnknown,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: errs.ErrKindTimeout,
		},
		{
			name: "no rows",
			err:  pgx.ErrNoRows,
			want: errs.ErrKindNotFound,
		},
		{
			name: "syntax error maps to query failure",
			err:  &pgconn.PgError{Code: "42601", Message: "syntax error at or near"},
			want: errs.ErrKindQueryFailed,
		},
		{
			name: "undefined function maps to query failure",
			err:  &pgconn.PgError{Code: "42883", Message: "function tilebbox does not exist"},
			want: errs.ErrKindQueryFailed,
		},
		{
			name: "class 08 maps to connection failure",
			err:  &pgconn.PgError{Code: "08006", Message: "connection failure"},
			want: errs.ErrKindConnectionFailed,
		},
		{
			name: "network error maps to connection failure",
			err:  &net.OpError{Op: "dial", Err: errors.New("refused")},
			want: errs.ErrKindConnectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapError(tt.err, "op")
			if tt.err == nil {
				assert.Nil(t, mapped)
				return
			}
			assert.Equal(t, tt.want, mapped.Kind)
			assert.ErrorIs(t, mapped, tt.err)
		})
	}
}
