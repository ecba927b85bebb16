package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"heureka-stats/utils"
)

var postgres = dialect{
	name:        "postgres",
	driver:      "postgres",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	quote:       pq.QuoteIdentifier,
}

// NewPostgresWriter opens a connection to PostgreSQL, waiting for the server
// to come up, and creates the table if needed.
func NewPostgresWriter(ctx context.Context, dsn, table string, incremental bool, logger *utils.Logger) (*SQLWriter, error) {
	return openSQLWriter(ctx, postgres, dsn, table, incremental, &utils.RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   2 * time.Second,
		MaxDelay:    2 * time.Second,
		Logger:      logger,
	})
}
