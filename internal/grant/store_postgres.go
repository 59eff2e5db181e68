package grant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gridconsent/internal/party"
	"gridconsent/internal/scope"
	"gridconsent/pkg/platform/sentinel"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so the store can run standalone or
// inside an enclosing transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists grants and their scope join rows in PostgreSQL.
type PostgresStore struct {
	db DBTX
}

// NewPostgres constructs a PostgreSQL-backed grant store.
func NewPostgres(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert writes the grant row and its grant_scopes join rows. A duplicate
// (source_type, source_id) is reported as ErrConflict via ON CONFLICT DO
// NOTHING so the enclosing transaction stays usable for the re-select.
func (s *PostgresStore) Insert(ctx context.Context, g *Grant) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO authorization_grants
			(id, status, granted_for, granted_by, granted_to,
			 granted_at, valid_from, valid_to, source_type, source_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING`,
		string(g.ID), string(g.Status),
		string(g.GrantedFor), string(g.GrantedBy), string(g.GrantedTo),
		g.GrantedAt, g.ValidFrom, g.ValidTo, string(g.SourceType), g.SourceID)
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert grant rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}

	for _, sc := range g.Scopes {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO grant_scopes (grant_id, scope_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			string(g.ID), string(sc.ID))
		if err != nil {
			return fmt.Errorf("insert grant scope link: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id ID) (*Grant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, granted_for, granted_by, granted_to,
		       granted_at, valid_from, valid_to, source_type, source_id
		FROM authorization_grants
		WHERE id = $1`,
		string(id))
	return s.scanGrantWithScopes(ctx, row, "find grant by id")
}

func (s *PostgresStore) FindBySource(ctx context.Context, sourceType SourceType, sourceID string) (*Grant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, granted_for, granted_by, granted_to,
		       granted_at, valid_from, valid_to, source_type, source_id
		FROM authorization_grants
		WHERE source_type = $1 AND source_id = $2`,
		string(sourceType), sourceID)
	return s.scanGrantWithScopes(ctx, row, "find grant by source")
}

// UpdateStatus transitions out of Active with a state predicate, so two
// concurrent consumers cannot both succeed: the loser's update matches zero
// rows and surfaces ErrInvalidState.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id ID, status Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE authorization_grants
		SET status = $2
		WHERE id = $1 AND status = $3`,
		string(id), string(status), string(StatusActive))
	if err != nil {
		return fmt.Errorf("update grant status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update grant status rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) scanGrantWithScopes(ctx context.Context, row *sql.Row, op string) (*Grant, error) {
	var g Grant
	var id, status, gFor, gBy, gTo, srcType string
	err := row.Scan(&id, &status, &gFor, &gBy, &gTo,
		&g.GrantedAt, &g.ValidFrom, &g.ValidTo, &srcType, &g.SourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	g.ID = ID(id)
	g.Status = Status(status)
	g.GrantedFor = party.ID(gFor)
	g.GrantedBy = party.ID(gBy)
	g.GrantedTo = party.ID(gTo)
	g.SourceType = SourceType(srcType)

	scopes, err := s.scopesFor(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	g.Scopes = scopes
	return &g, nil
}

func (s *PostgresStore) scopesFor(ctx context.Context, id ID) ([]scope.Scope, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sc.id, sc.resource_type, sc.resource_id, sc.permission_type, sc.created_at
		FROM scopes sc
		JOIN grant_scopes gs ON gs.scope_id = sc.id
		WHERE gs.grant_id = $1
		ORDER BY sc.created_at, sc.id`,
		string(id))
	if err != nil {
		return nil, fmt.Errorf("list grant scopes: %w", err)
	}
	defer rows.Close()

	var scopes []scope.Scope
	for rows.Next() {
		var sc scope.Scope
		var scID, rt, pt string
		if err := rows.Scan(&scID, &rt, &sc.ResourceID, &pt, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan grant scope: %w", err)
		}
		sc.ID = scope.ID(scID)
		sc.ResourceType = scope.ResourceType(rt)
		sc.PermissionType = scope.PermissionType(pt)
		scopes = append(scopes, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grant scopes: %w", err)
	}
	return scopes, nil
}
