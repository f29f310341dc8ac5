package mysql

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/store/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() dbconfig.Config {
	cfg := dbconfig.Config{
		Kind:     dbconfig.KindMySQL,
		Host:     "db.internal",
		User:     "shop",
		Password: "s3cret",
		Database: "catalog",
	}
	cfg.ApplyDefaults()
	return cfg
}

// newMockAdapter wires openDB to sqlmock and initializes the adapter.
func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	orig := openDB
	openDB = func(string) (*sqlx.DB, error) { return sqlx.NewDb(db, DriverName), nil }
	t.Cleanup(func() { openDB = orig })

	mock.ExpectQuery(regexp.QuoteMeta(connector.PingQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	a := New(testConfig())
	require.NoError(t, a.Initialize(context.Background()))
	require.True(t, a.IsConnected())
	return a, mock
}

func TestInitializePingFailureClosesPool(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	orig := openDB
	openDB = func(string) (*sqlx.DB, error) { return sqlx.NewDb(db, DriverName), nil }
	defer func() { openDB = orig }()

	mock.ExpectQuery(regexp.QuoteMeta(connector.PingQuery)).
		WillReturnError(errors.New("dial tcp 10.0.0.1:3306: connect: connection refused"))
	mock.ExpectClose()

	a := New(testConfig())
	err = a.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, a.IsConnected())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryWrite(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stores(id, name) VALUES(?, ?)")).
		WithArgs("s1", "Main").
		WillReturnResult(sqlmock.NewResult(7, 1))

	res, err := a.Query(context.Background(), "INSERT INTO stores(id, name) VALUES(?, ?)", "s1", "Main")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, int64(7), res.LastInsertID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRead(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title FROM products WHERE store_id = ?")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow("p1", []byte("Mug")).
			AddRow("p2", "Cap"))

	res, err := a.Query(context.Background(), "SELECT id, title FROM products WHERE store_id = ?", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Mug", res.Rows[0]["title"])
	assert.Equal(t, "Cap", res.Rows[1].String("title"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryError(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectExec("UPDATE products").WillReturnError(errors.New("Error 1062: Duplicate entry"))

	_, err := a.Query(context.Background(), "UPDATE products SET sku = ?", "dup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate entry")
}

func TestTransactionCommit(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := a.Transaction(context.Background(), func(ctx context.Context, tx connector.Conn) error {
		_, err := tx.Query(ctx, "INSERT INTO settings(k, v) VALUES(?, ?)", "theme", "dark")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollback(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("validation failed")
	err := a.Transaction(context.Background(), func(ctx context.Context, tx connector.Conn) error {
		if _, err := tx.Query(ctx, "UPDATE products SET price = ? WHERE id = ?", 1.5, "p1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())

	// the borrowed connection went back to the pool
	mock.ExpectQuery(regexp.QuoteMeta(connector.PingQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	_, err = a.Query(context.Background(), connector.PingQuery)
	assert.NoError(t, err)
}

func TestHealthCheck(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery(regexp.QuoteMeta(connector.PingQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT VERSION()")).
		WillReturnRows(sqlmock.NewRows([]string{"VERSION()"}).AddRow("10.11.6-MariaDB"))

	h := a.HealthCheck(context.Background())
	assert.Equal(t, connector.StatusHealthy, h.Status)
	assert.Equal(t, "mysql", h.Details.Backend)
	assert.Equal(t, "db.internal", h.Details.Host)
	assert.Equal(t, 3306, h.Details.Port)
	assert.Equal(t, "10.11.6-MariaDB", h.Details.Version)

	mock.ExpectQuery(regexp.QuoteMeta(connector.PingQuery)).
		WillReturnError(errors.New("Access denied for user 'shop' using password s3cret"))
	h = a.HealthCheck(context.Background())
	assert.Equal(t, connector.StatusUnhealthy, h.Status)
	assert.NotContains(t, h.Details.Error, "s3cret")
}

func TestCloseIsIdempotent(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectClose()
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.False(t, a.IsConnected())

	_, err := a.Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, connector.ErrNotConnected)
	assert.Equal(t, connector.StatusDisconnected, a.HealthCheck(context.Background()).Status)
}

func TestBuildDSN(t *testing.T) {
	cfg := testConfig()
	dsn, err := BuildDSN(cfg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "shop:s3cret@tcp(db.internal:3306)/catalog?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "time_zone=%27%2B00%3A00%27")
	assert.NotContains(t, dsn, "tls=")

	cfg.TLS = true
	cfg.Timezone = "-05:00"
	dsn, err = BuildDSN(cfg)
	require.NoError(t, err)
	assert.Contains(t, dsn, "tls=true")
	assert.Contains(t, dsn, "time_zone=%27-05%3A00%27")

	cfg.Timezone = "Not/AZone"
	_, err = BuildDSN(cfg)
	assert.Error(t, err)
}
