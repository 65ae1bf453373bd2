package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
	"github.com/ujjwalredd/Axiomeer/pkg/ledger"
)

func newMock(t *testing.T, driver string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, driver)), mock
}

func TestMigratePostgresDialect(t *testing.T) {
	s, mock := newMock(t, DriverPostgres)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS apps \(.*cost_est_usd DOUBLE PRECISION`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs \(\s*id BIGSERIAL PRIMARY KEY`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_runs_app`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS messages`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_messages_client`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateFailureIsWrapped(t *testing.T) {
	s, mock := newMock(t, DriverSQLite)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS apps`).WillReturnError(errors.New("disk full"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPlaceholders(t *testing.T) {
	s, mock := newMock(t, DriverPostgres)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM runs WHERE id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.Runs().Get(context.Background(), 7)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendReturnsAssignedID(t *testing.T) {
	s, mock := newMock(t, DriverPostgres)
	mock.ExpectQuery(`INSERT INTO runs .* RETURNING id`).
		WithArgs("weather_rt", "t", "", false, false, nil, nil, "[]", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, err := s.Runs().Append(context.Background(), ledger.Record{AppID: "weather_rt", Task: "t"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendErrorPropagates(t *testing.T) {
	s, mock := newMock(t, DriverPostgres)
	mock.ExpectQuery(`INSERT INTO runs`).WillReturnError(errors.New("connection reset"))

	_, err := s.Runs().Append(context.Background(), ledger.Record{AppID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateMapsToErrExists(t *testing.T) {
	s, mock := newMock(t, DriverPostgres)
	mock.ExpectExec(`INSERT INTO apps .* ON CONFLICT \(id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Create(context.Background(), weatherEntry())
	assert.ErrorIs(t, err, catalog.ErrExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDecodeFailure(t *testing.T) {
	s, mock := newMock(t, DriverSQLite)
	rows := sqlmock.NewRows([]string{
		"id", "name", "description", "capabilities", "freshness", "citations_supported",
		"latency_est_ms", "cost_est_usd", "executor_type", "executor_method", "executor_url", "input_schema",
	}).AddRow("x", "X", "", "not json", "static", true, 100, 0.0, "http_api", "GET", "", nil)
	mock.ExpectQuery(`SELECT .* FROM apps ORDER BY id`).WillReturnRows(rows)

	_, err := s.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode capabilities")
}
