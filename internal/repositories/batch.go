package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// Statement is one deferred SQL mutation queued for a sync pass commit.
type Statement struct {
	Query string
	Args  []any
}

// WriteSet accumulates mutations during a sync pass. Nothing touches the
// database until Commit, which runs every statement inside one transaction;
// a pass therefore produces exactly one commit or none.
type WriteSet struct {
	statements []Statement
}

// NewWriteSet creates an empty WriteSet.
func NewWriteSet() *WriteSet {
	return &WriteSet{}
}

// Add queues a statement for the pass commit.
func (w *WriteSet) Add(stmt Statement) {
	w.statements = append(w.statements, stmt)
}

// AddAll queues multiple statements in order.
func (w *WriteSet) AddAll(stmts []Statement) {
	w.statements = append(w.statements, stmts...)
}

// Len returns the number of queued statements.
func (w *WriteSet) Len() int {
	return len(w.statements)
}

// Commit executes every queued statement inside a single transaction.
// On any failure the transaction rolls back and the database is exactly
// as it was before the pass.
func (w *WriteSet) Commit(ctx context.Context, db *sql.DB) error {
	if len(w.statements) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range w.statements {
		if _, err := tx.Exec(stmt.Query, stmt.Args...); err != nil {
			return fmt.Errorf("failed to execute batch statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit write set: %w", err)
	}

	return nil
}
