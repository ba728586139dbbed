package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

var DB *sql.DB

// Connect opens the Postgres pool used by the contacts repository.
func Connect(databaseURL string) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	DB = db
	return nil
}
