package storage

import (
	"database/sql"
	"time"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/logger"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is the MySQL persistence gateway
type MySQLStore struct {
	db  *sql.DB
	dsn string
}

// NewMySQLStore creates a MySQL store; no connection is opened until
// Connect is called
func NewMySQLStore(dsn string) *MySQLStore {
	return &MySQLStore{dsn: dsn}
}

// Connect ensures a live connection, reopening a dead one
func (ms *MySQLStore) Connect() error {
	if ms.db != nil {
		if err := ms.db.Ping(); err == nil {
			return nil
		}
		ms.db.Close()
		ms.db = nil
		logger.Warn("MySQL connection lost, reconnecting")
	}

	db, err := sql.Open("mysql", ms.dsn)
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

	ms.db = db
	logger.Info("connected to MySQL database")
	return nil
}

// ResolveChannel maps (device_id, channel_name) to a channel id
func (ms *MySQLStore) ResolveChannel(deviceID int64, name string) (int64, error) {
	if ms.db == nil {
		return 0, &ConnError{Err: errNotConnected}
	}

	var channelID int64
	err := ms.db.QueryRow(
		"SELECT channel_id FROM channel WHERE device_id = ? AND channel_name = ?",
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
func (ms *MySQLStore) InsertMeasurement(m Measurement) error {
	if ms.db == nil {
		return &ConnError{Err: errNotConnected}
	}

	_, err := ms.db.Exec(
		"INSERT INTO measurement (channel_id, value, quality, ts) VALUES (?, ?, ?, ?)",
		m.ChannelID, m.Value, string(m.Quality), m.Timestamp,
	)
	if err != nil {
		return &QueryError{Op: "measurement insert", Err: err}
	}
	return nil
}

// InitSchema creates the channel and measurement tables if absent
func (ms *MySQLStore) InitSchema() error {
	if err := ms.Connect(); err != nil {
		return err
	}

	channelTableSQL := `
	CREATE TABLE IF NOT EXISTS channel (
		channel_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		device_id INT NOT NULL,
		channel_name VARCHAR(255) NOT NULL,
		UNIQUE KEY uniq_device_channel (device_id, channel_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	measurementTableSQL := `
	CREATE TABLE IF NOT EXISTS measurement (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		channel_id BIGINT NOT NULL,
		value DOUBLE NOT NULL,
		quality VARCHAR(20) NOT NULL,
		ts VARCHAR(64) NOT NULL,
		FOREIGN KEY (channel_id) REFERENCES channel(channel_id),
		INDEX idx_measurement_channel (channel_id),
		INDEX idx_measurement_ts (ts)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := ms.db.Exec(channelTableSQL); err != nil {
		return &QueryError{Op: "channel table creation", Err: err}
	}
	if _, err := ms.db.Exec(measurementTableSQL); err != nil {
		return &QueryError{Op: "measurement table creation", Err: err}
	}

	logger.Info("MySQL schema initialized")
	return nil
}

// Close closes the database connection; safe to call repeatedly
func (ms *MySQLStore) Close() error {
	if ms.db == nil {
		return nil
	}
	err := ms.db.Close()
	ms.db = nil
	if err != nil {
		return err
	}
	logger.Info("MySQL connection closed")
	return nil
}
