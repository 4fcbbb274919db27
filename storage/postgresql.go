package storage

import (
	"database/sql"
	"time"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/logger"
	_ "github.com/lib/pq"
)

// PostgresStore is the PostgreSQL persistence gateway
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

// NewPostgresStore creates a PostgreSQL store; no connection is opened
// until Connect is called
func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn}
}

// Connect ensures a live connection, reopening a dead one
func (ps *PostgresStore) Connect() error {
	if ps.db != nil {
		if err := ps.db.Ping(); err == nil {
			return nil
		}
		ps.db.Close()
		ps.db = nil
		logger.Warn("PostgreSQL connection lost, reconnecting")
	}

	db, err := sql.Open("postgres", ps.dsn)
	if err != nil {
		return &ConnError{Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return &ConnError{Err: err}
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 5)

	ps.db = db
	logger.Info("connected to PostgreSQL database")
	return nil
}

// ResolveChannel maps (device_id, channel_name) to a channel id
func (ps *PostgresStore) ResolveChannel(deviceID int64, name string) (int64, error) {
	if ps.db == nil {
		return 0, &ConnError{Err: errNotConnected}
	}

	var channelID int64
	err := ps.db.QueryRow(
		"SELECT channel_id FROM channel WHERE device_id = $1 AND channel_name = $2",
		deviceID, name,
	).Scan(&channelID)

	if err == sql.ErrNoRows {
		return 0, ErrChannelNotFound
	}
	if err != nil {
		return 0, &QueryError{Op: "channel lookup", Err: err}
	}
	return channelID, nil
}

// InsertMeasurement appends one measurement row
func (ps *PostgresStore) InsertMeasurement(m Measurement) error {
	if ps.db == nil {
		return &ConnError{Err: errNotConnected}
	}

	_, err := ps.db.Exec(
		"INSERT INTO measurement (channel_id, value, quality, ts) VALUES ($1, $2, $3, $4)",
		m.ChannelID, m.Value, string(m.Quality), m.Timestamp,
	)
	if err != nil {
		return &QueryError{Op: "measurement insert", Err: err}
	}
	return nil
}

// InitSchema creates the channel and measurement tables if absent
func (ps *PostgresStore) InitSchema() error {
	if err := ps.Connect(); err != nil {
		return err
	}

	channelTableSQL := `
	CREATE TABLE IF NOT EXISTS channel (
		channel_id SERIAL PRIMARY KEY,
		device_id INTEGER NOT NULL,
		channel_name VARCHAR(255) NOT NULL,
		UNIQUE (device_id, channel_name)
	);
	`

	measurementTableSQL := `
	CREATE TABLE IF NOT EXISTS measurement (
		id SERIAL PRIMARY KEY,
		channel_id INTEGER NOT NULL REFERENCES channel(channel_id),
		value DOUBLE PRECISION NOT NULL,
		quality VARCHAR(20) NOT NULL,
		ts TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_measurement_channel ON measurement(channel_id);
	CREATE INDEX IF NOT EXISTS idx_measurement_ts ON measurement(ts);
	`

	if _, err := ps.db.Exec(channelTableSQL); err != nil {
		return &QueryError{Op: "channel table creation", Err: err}
	}
	if _, err := ps.db.Exec(measurementTableSQL); err != nil {
		return &QueryError{Op: "measurement table creation", Err: err}
	}

	logger.Info("PostgreSQL schema initialized")
	return nil
}

// Close closes the database connection; safe to call repeatedly
func (ps *PostgresStore) Close() error {
	if ps.db == nil {
		return nil
	}
	err := ps.db.Close()
	ps.db = nil
	if err != nil {
		return err
	}
	logger.Info("PostgreSQL connection closed")
	return nil
}
