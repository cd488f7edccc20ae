package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pq serialization failure", &pq.Error{Code: "40001"}, true},
		{"pq deadlock wrapped", fmt.Errorf("update links: %w", &pq.Error{Code: "40P01"}), true},
		{"pgx serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"pq unique violation", &pq.Error{Code: "23505"}, false},
		{"plain error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestSchemaEmbedded(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS contacts")
	assert.Contains(t, schema, "clock_timestamp()")
}
