package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/config"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN("db.local", 5432, "telemetry", "collector", "secret")
	assert.Equal(t, "host=db.local port=5432 dbname=telemetry user=collector password=secret sslmode=disable", dsn)
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN("db.local", 3306, "telemetry", "collector", "secret")
	assert.Equal(t, "collector:secret@tcp(db.local:3306)/telemetry?parseTime=true", dsn)
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(config.DatabaseConfig{Type: "postgres", Host: "h", Port: 5432})
	require.NoError(t, err)
	assert.IsType(t, &PostgresStore{}, store)

	store, err = New(config.DatabaseConfig{Type: "mysql", Host: "h", Port: 3306})
	require.NoError(t, err)
	assert.IsType(t, &MySQLStore{}, store)
}

func TestNewUnknownTypeFails(t *testing.T) {
	_, err := New(config.DatabaseConfig{Type: "sqlite"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestStoreOperationsRequireConnect(t *testing.T) {
	ps := NewPostgresStore("host=nowhere")

	_, err := ps.ResolveChannel(1, "temp")
	var connErr *ConnError
	require.ErrorAs(t, err, &connErr)

	err = ps.InsertMeasurement(Measurement{ChannelID: 1, Value: 1, Quality: QualityGood})
	require.ErrorAs(t, err, &connErr)

	assert.NoError(t, ps.Close(), "close before connect is a no-op")
	assert.NoError(t, ps.Close(), "close is idempotent")
}

func TestErrorWrapping(t *testing.T) {
	base := errors.New("timeout")

	connErr := &ConnError{Err: base}
	assert.ErrorIs(t, connErr, base)
	assert.Contains(t, connErr.Error(), "database connection failed")

	queryErr := &QueryError{Op: "channel lookup", Err: base}
	assert.ErrorIs(t, queryErr, base)
	assert.Contains(t, queryErr.Error(), "channel lookup")
}

func TestArchiveRecordsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive", "measurements.jsonl")
	archive, err := NewArchive(path)
	require.NoError(t, err)

	m := Measurement{ChannelID: 7, Value: -5, Quality: QualityUncertain, Timestamp: "2024-06-01T00:00:00"}
	require.NoError(t, archive.Record(1, "pressure", m))
	require.NoError(t, archive.Record(1, "pressure", m))
	require.NoError(t, archive.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []archiveRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec archiveRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, int64(1), lines[0].DeviceID)
	assert.Equal(t, "pressure", lines[0].Channel)
	assert.Equal(t, int64(7), lines[0].ChannelID)
	assert.Equal(t, -5.0, lines[0].Value)
	assert.Equal(t, "Uncertain", lines[0].Quality)
	assert.Equal(t, "2024-06-01T00:00:00", lines[0].Timestamp)
}

func TestArchiveCloseIdempotent(t *testing.T) {
	archive, err := NewArchive(filepath.Join(t.TempDir(), "m.jsonl"))
	require.NoError(t, err)
	assert.NoError(t, archive.Close())
	assert.NoError(t, archive.Close())
}
