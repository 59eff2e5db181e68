package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridconsent/internal/party"
	domainerrors "gridconsent/pkg/domain-errors"
)

func testParty() party.Party {
	return party.Party{
		ID:                 party.NewID(),
		Type:               party.TypePerson,
		ExternalResourceID: "person-1",
		CreatedAt:          time.Now().UTC(),
	}
}

func TestPostgresRunner_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO parties").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runner := NewPostgresRunner(db)
	err = runner.RunInTx(context.Background(), func(tx Tx) error {
		return tx.Parties().Insert(context.Background(), testParty())
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunner_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	runner := NewPostgresRunner(db)
	boom := errors.New("downstream refused")
	err = runner.RunInTx(context.Background(), func(tx Tx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunner_BeginFailureIsDependencyError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	runner := NewPostgresRunner(db)
	err = runner.RunInTx(context.Background(), func(tx Tx) error {
		t.Fatal("unit must not run when begin fails")
		return nil
	})

	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeDependency))
}

func TestPostgresRunner_CancelledContext(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewPostgresRunner(db)
	err = runner.RunInTx(ctx, func(tx Tx) error {
		t.Fatal("unit must not run on a cancelled context")
		return nil
	})

	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeTimeout))
}

func TestPostgresRunner_CommitFailureIsDependencyError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("server closed connection"))

	runner := NewPostgresRunner(db)
	err = runner.RunInTx(context.Background(), func(tx Tx) error {
		return nil
	})

	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeDependency))
}
