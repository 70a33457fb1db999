package repository

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Run("recognizes a postgres unique violation", func(t *testing.T) {
		err := &pq.Error{Code: "23505", Constraint: "idx_shares_pending_pair"}
		assert.True(t, isUniqueViolation(err))
		assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", err)))
	})

	t.Run("recognizes a sqlite unique violation", func(t *testing.T) {
		err := sqlite3.Error{
			Code:         sqlite3.ErrConstraint,
			ExtendedCode: sqlite3.ErrConstraintUnique,
		}
		assert.True(t, isUniqueViolation(err))
		assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", err)))
	})

	t.Run("ignores other database errors", func(t *testing.T) {
		assert.False(t, isUniqueViolation(fmt.Errorf("connection refused")))
		assert.False(t, isUniqueViolation(&pq.Error{Code: "40001"}))
		assert.False(t, isUniqueViolation(sqlite3.Error{
			Code:         sqlite3.ErrConstraint,
			ExtendedCode: sqlite3.ErrConstraintForeignKey,
		}))
		assert.False(t, isUniqueViolation(nil))
	})
}
