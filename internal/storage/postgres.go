package storage

import (
	"context"
	"database/sql"
	"time"

	"gridconsent/internal/document"
	"gridconsent/internal/grant"
	"gridconsent/internal/party"
	"gridconsent/internal/request"
	"gridconsent/internal/scope"
	domainerrors "gridconsent/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// PostgresRunner runs units of work on a single relational store.
type PostgresRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// PostgresOption configures a PostgresRunner.
type PostgresOption func(*PostgresRunner)

// WithTxTimeout bounds each transaction when the caller's context has no
// deadline of its own.
func WithTxTimeout(d time.Duration) PostgresOption {
	return func(r *PostgresRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewPostgresRunner constructs a transaction runner over db.
func NewPostgresRunner(db *sql.DB, opts ...PostgresOption) *PostgresRunner {
	r := &PostgresRunner{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PostgresRunner) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeDependency, "begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(&postgresTx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeDependency, "commit transaction")
	}
	return nil
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) Parties() party.Store      { return party.NewPostgres(t.tx) }
func (t *postgresTx) Scopes() scope.Store       { return scope.NewPostgres(t.tx) }
func (t *postgresTx) Requests() request.Store   { return request.NewPostgres(t.tx) }
func (t *postgresTx) Grants() grant.Store       { return grant.NewPostgres(t.tx) }
func (t *postgresTx) Documents() document.Store { return document.NewPostgres(t.tx) }
