package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Тесты для isUniqueViolation
// ============================================================================

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "pgconn 23505", err: &pgconn.PgError{Code: "23505"}, expected: true},
		{name: "обёрнутый pgconn 23505", err: fmt.Errorf("save certificate: %w", &pgconn.PgError{Code: "23505"}), expected: true},
		{name: "pgconn другой код", err: &pgconn.PgError{Code: "23503"}, expected: false},
		{name: "lib/pq 23505", err: &pq.Error{Code: "23505"}, expected: true},
		{name: "lib/pq другой код", err: &pq.Error{Code: "40001"}, expected: false},
		{name: "обычная ошибка", err: errors.New("duplicate key"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isUniqueViolation(tt.err))
		})
	}
}
