package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "svc",
		Password: "secret",
		Name:     "mediadesk",
		Host:     "db.internal",
		Port:     5433,
	})
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=5433 user=svc dbname=mediadesk password=secret sslmode=disable", dsn)

	dsn, err = buildPostgresDSN(Config{
		User:    "svc",
		Name:    "mediadesk",
		Options: map[string]string{"sslmode": "require"},
	})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=svc dbname=mediadesk sslmode=require", dsn)

	_, err = buildPostgresDSN(Config{Name: "mediadesk"})
	require.Error(t, err)

	dsn, err = buildPostgresDSN(Config{DSN: "postgres://override"})
	require.NoError(t, err)
	require.Equal(t, "postgres://override", dsn)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "svc",
		Password: "secret",
		Name:     "mediadesk",
		Host:     "db.internal",
		Port:     3307,
	})
	require.NoError(t, err)
	require.Equal(t, "svc:secret@tcp(db.internal:3307)/mediadesk?charset=utf8mb4&loc=Local&parseTime=True", dsn)

	dsn, err = buildMySQLDSN(Config{User: "svc", Name: "mediadesk"})
	require.NoError(t, err)
	require.Equal(t, "svc@tcp(127.0.0.1:3306)/mediadesk?charset=utf8mb4&loc=Local&parseTime=True", dsn)

	_, err = buildMySQLDSN(Config{User: "svc"})
	require.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}
