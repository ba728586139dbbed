package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RunMigrations applies every *.up.sql in the directory in name order. The
// SQL files are written idempotent (IF NOT EXISTS) so re-running is safe.
func RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return err
	}

	var upMigrations []string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".up.sql") {
			upMigrations = append(upMigrations, file.Name())
		}
	}

	sort.Strings(upMigrations)

	for _, migrationFile := range upMigrations {
		log.Printf("Running migration: %s", migrationFile)
		content, err := os.ReadFile(filepath.Join(migrationsDir, migrationFile))
		if err != nil {
			return err
		}

		if _, err := DB.Exec(string(content)); err != nil {
			return fmt.Errorf("migration %s failed: %w", migrationFile, err)
		}
	}

	log.Println("Migrations completed successfully")
	return nil
}
