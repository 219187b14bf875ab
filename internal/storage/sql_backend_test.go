package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T, driver string) (*DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewWithConn(conn, driver), mock
}

func TestPostgresUpdate_LocksRowAndUpserts(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT kv_value FROM kv_store WHERE kv_key = $1 FOR UPDATE`)).
		WithArgs("landing_pages").
		WillReturnRows(sqlmock.NewRows([]string{"kv_value"}).AddRow(`[]`))
	mock.ExpectExec(`INSERT INTO kv_store`).
		WithArgs("landing_pages", `[{"id":"p1"}]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.Update(context.Background(), "landing_pages", func(current []byte) ([]byte, error) {
		assert.Equal(t, `[]`, string(current))
		return []byte(`[{"id":"p1"}]`), nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUpdate_MissingRowPassesNil(t *testing.T) {
	db, mock := setupMockDB(t, DriverMySQL)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT kv_value FROM kv_store WHERE kv_key = ? FOR UPDATE`)).
		WithArgs("k").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(`ON DUPLICATE KEY UPDATE`)).
		WithArgs("k", "v", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := db.Update(context.Background(), "k", func(current []byte) ([]byte, error) {
		assert.Nil(t, current)
		return []byte("v"), nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_WriteFailureRollsBack(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT kv_value`).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"kv_value"}).AddRow("old"))
	mock.ExpectExec(`INSERT INTO kv_store`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := db.Update(context.Background(), "k", func([]byte) ([]byte, error) { return []byte("new"), nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_FuncErrorRollsBack(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT kv_value`).
		WithArgs("k").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := db.Update(context.Background(), "k", func([]byte) ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_ReadFailure(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT kv_value FROM kv_store WHERE kv_key = $1`)).
		WithArgs("k").
		WillReturnError(errors.New("connection reset"))

	val, err := db.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Nil(t, val)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKeys_PostgresUsesLikePrefix(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectQuery(`SELECT kv_key FROM kv_store WHERE kv_key LIKE`).
		WithArgs("landing_page_versions:%").
		WillReturnRows(sqlmock.NewRows([]string{"kv_key"}).
			AddRow("landing_page_versions:a").
			AddRow("landing_page_versionsXb"))

	keys, err := db.Keys(context.Background(), "landing_page_versions:")
	require.NoError(t, err)
	assert.Equal(t, []string{"landing_page_versions:a"}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateMany_OneTransaction(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT kv_value`).WithArgs("landing_pages").
		WillReturnRows(sqlmock.NewRows([]string{"kv_value"}).AddRow(`[]`))
	mock.ExpectQuery(`SELECT kv_value`).WithArgs("landing_page_versions:p1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO kv_store`).WithArgs("landing_pages", "pages", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO kv_store`).WithArgs("landing_page_versions:p1", "versions", sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := db.UpdateMany(context.Background(), []string{"landing_pages", "landing_page_versions:p1"},
		func(current [][]byte) ([][]byte, error) {
			assert.Equal(t, `[]`, string(current[0]))
			assert.Nil(t, current[1])
			return [][]byte{[]byte("pages"), []byte("versions")}, nil
		})
	require.Error(t, err, "the second write fails and the first is rolled back")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMany_WrongValueCount(t *testing.T) {
	db, mock := setupMockDB(t, DriverPostgres)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT kv_value`).WithArgs("a").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT kv_value`).WithArgs("b").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := db.UpdateMany(context.Background(), []string{"a", "b"}, func([][]byte) ([][]byte, error) {
		return [][]byte{[]byte("only one")}, nil
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
