package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// MigrationFiles lists the *.up.sql or *.down.sql files in dir in the
// order they must run: ascending for up, descending for down.
func MigrationFiles(dir string, direction Direction) ([]string, error) {
	if direction != Up && direction != Down {
		return nil, fmt.Errorf("unknown migration direction %q", direction)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	suffix := "." + string(direction) + ".sql"
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if direction == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}

// Migrate runs every migration file for direction and calls onApply after
// each one. Files run one by one so a failure names the offending file.
func Migrate(ctx context.Context, db *sql.DB, dir string, direction Direction, onApply func(name string)) (int, error) {
	files, err := MigrationFiles(dir, direction)
	if err != nil {
		return 0, err
	}

	for i, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return i, fmt.Errorf("read migration file %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return i, fmt.Errorf("execute migration %s: %w", name, err)
		}
		if onApply != nil {
			onApply(name)
		}
	}

	return len(files), nil
}
