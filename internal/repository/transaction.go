package repository

import (
	"context"
	"database/sql"
)

// Tx is the transaction handle passed through the *Tx repository
// methods. Abstracting it keeps the service layer free of database/sql
// so its orchestration logic can be exercised with test doubles.
type Tx interface {
	Commit() error
	Rollback() error
}

// TxManager begins transactions. *sql.DB backs the production
// implementation; tests substitute their own.
type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
}

// txWrapper adapts *sql.Tx to the Tx interface.
type txWrapper struct {
	tx *sql.Tx
}

func (w *txWrapper) Commit() error   { return w.tx.Commit() }
func (w *txWrapper) Rollback() error { return w.tx.Rollback() }

// sqlTxManager is the database/sql-backed TxManager.
type sqlTxManager struct {
	db *sql.DB
}

// NewTxManager returns a TxManager over the given database handle.
func NewTxManager(db *sql.DB) TxManager { return &sqlTxManager{db: db} }

// Begin starts a new transaction.
func (m *sqlTxManager) Begin(ctx context.Context) (Tx, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txWrapper{tx: tx}, nil
}

// UnwrapTx extracts the underlying *sql.Tx. Repository implementations
// call this at the top of every *Tx method; a foreign Tx yields nil and
// the resulting query error surfaces immediately rather than silently
// running outside the transaction.
func UnwrapTx(tx Tx) *sql.Tx {
	if w, ok := tx.(*txWrapper); ok {
		return w.tx
	}
	return nil
}
