package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-resource-core/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "core", Password: "secret", Name: "rooms", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=core password=secret dbname=rooms sslmode=disable", dsn)
}

func TestHealthCheckPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	check := NewHealthCheck(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectPing()
	require.NoError(t, check.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, check.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())

	var missing *HealthCheck
	assert.Error(t, missing.Ping(context.Background()))
}
