package storage

import (
	"fmt"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/config"
)

// DatabaseType identifies a supported database backend
type DatabaseType string

const (
	// Postgres backend
	Postgres DatabaseType = "postgres"
	// MySQL backend
	MySQL DatabaseType = "mysql"
)

// DatabaseStore is a Store that can also bootstrap its schema
type DatabaseStore interface {
	Store
	// InitSchema creates the channel and measurement tables if absent
	InitSchema() error
}

// New creates the database store selected by the configuration
func New(cfg config.DatabaseConfig) (DatabaseStore, error) {
	switch DatabaseType(cfg.Type) {
	case Postgres:
		return NewPostgresStore(PostgresDSN(cfg.Host, cfg.Port, cfg.Name, cfg.User, cfg.Password)), nil
	case MySQL:
		return NewMySQLStore(MySQLDSN(cfg.Host, cfg.Port, cfg.Name, cfg.User, cfg.Password)), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// PostgresDSN builds a lib/pq key-value DSN from connection parts
func PostgresDSN(host string, port int, name, user, password string) string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, name, user, password)
}

// MySQLDSN builds a go-sql-driver DSN from connection parts
func MySQLDSN(host string, port int, name, user, password string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", user, password, host, port, name)
}
