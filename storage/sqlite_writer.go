package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"heureka-stats/utils"
)

var sqlite = dialect{
	name:        "sqlite",
	driver:      "sqlite",
	placeholder: func(int) string { return "?" },
	quote:       func(ident string) string { return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"` },
}

// NewSQLiteWriter opens (or creates) the database file at path.
func NewSQLiteWriter(ctx context.Context, path, table string, incremental bool) (*SQLWriter, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create output dir: %w", err)
		}
	}
	return openSQLWriter(ctx, sqlite, path, table, incremental, &utils.RetryPolicy{MaxAttempts: 1})
}
