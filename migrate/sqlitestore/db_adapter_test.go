package sqlitestore_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/go-msr/msr/migrate"
	"github.com/go-msr/msr/migrate/sqlitestore"
)

func TestDBAdapter_ExecAndQueryDelegateToSQLMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM users").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	adapter := sqlitestore.NewDBAdapter(db)

	res, err := adapter.Exec(context.Background(), "CREATE TABLE users (id INTEGER)")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rows, err := adapter.Query(context.Background(), "SELECT id FROM users")
	require.NoError(t, err)
	var ids []int
	for rows.Next() {
		var id int
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	require.Equal(t, []int{1, 2}, ids)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDBAdapter_BeginTxCommitsThroughTxAdapter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	adapter := sqlitestore.NewDBAdapter(db)
	tx, err := adapter.BeginTx(context.Background(), migrate.IsolationReadCommitted)
	require.NoError(t, err)

	_, err = tx.Exec(context.Background(), "INSERT INTO t VALUES (1)")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDBAdapter_CheckConnectionReflectsPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	adapter := sqlitestore.NewDBAdapter(db)
	ok, err := adapter.CheckConnection(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
