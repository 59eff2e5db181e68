package scope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gridconsent/pkg/platform/sentinel"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so the store can run standalone or
// inside an enclosing transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists scopes in PostgreSQL.
type PostgresStore struct {
	db DBTX
}

// NewPostgres constructs a PostgreSQL-backed scope store.
func NewPostgres(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByKey(ctx context.Context, key Key) (Scope, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, resource_type, resource_id, permission_type, created_at
		FROM scopes
		WHERE resource_type = $1 AND resource_id = $2 AND permission_type = $3`,
		string(key.ResourceType), key.ResourceID, string(key.PermissionType))

	var sc Scope
	var id, rt, pt string
	if err := row.Scan(&id, &rt, &sc.ResourceID, &pt, &sc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Scope{}, sentinel.ErrNotFound
		}
		return Scope{}, fmt.Errorf("find scope by key: %w", err)
	}
	sc.ID = ID(id)
	sc.ResourceType = ResourceType(rt)
	sc.PermissionType = PermissionType(pt)
	return sc, nil
}

// Insert reports a duplicate triple as ErrConflict via ON CONFLICT DO
// NOTHING, keeping the enclosing transaction usable for the re-select.
func (s *PostgresStore) Insert(ctx context.Context, sc Scope) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scopes (id, resource_type, resource_id, permission_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		string(sc.ID), string(sc.ResourceType), sc.ResourceID, string(sc.PermissionType), sc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert scope: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert scope rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}
