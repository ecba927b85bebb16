package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"heureka-stats/models"
	"heureka-stats/utils"
)

const batchSize = 50

// dialect holds what differs between the SQL backends.
type dialect struct {
	name        string
	driver      string
	placeholder func(n int) string
	quote       func(ident string) string
}

// SQLWriter buffers records and stores them in one transaction on Flush.
// In incremental mode rows are upserted on (eshop_id, date); otherwise the
// table is emptied first.
type SQLWriter struct {
	mu          sync.Mutex
	db          *sql.DB
	d           dialect
	table       string
	incremental bool
	keys        *utils.KeySet
	pending     []*models.StatsRecord
}

func openSQLWriter(ctx context.Context, d dialect, dsn, table string, incremental bool, ping *utils.RetryPolicy) (*SQLWriter, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.name, err)
	}

	if err := ping.Do(ctx, d.name+" ping", func(int) error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", d.name, err)
	}

	w := &SQLWriter{
		db:          db,
		d:           d,
		table:       table,
		incremental: incremental,
		keys:        utils.NewKeySet(),
	}
	if err := w.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", d.name, err)
	}
	return w, nil
}

func (w *SQLWriter) migrate(ctx context.Context) error {
	defs := make([]string, 0, len(models.Columns)+1)
	for _, col := range models.Columns {
		null := ""
		if isKey(col) {
			null = " NOT NULL"
		}
		defs = append(defs, w.d.quote(col)+" TEXT"+null)
	}
	defs = append(defs, "PRIMARY KEY ("+w.quoteList(models.PrimaryKey)+")")

	_, err := w.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		w.d.quote(w.table), strings.Join(defs, ",\n\t")))
	return err
}

// Write queues a record for the next Flush.
func (w *SQLWriter) Write(rec *models.StatsRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.keys.Add(rec.Key()) {
		return fmt.Errorf("%s: %w: %s", w.d.name, ErrDuplicateRecord, rec.Key())
	}
	w.pending = append(w.pending, rec)
	return nil
}

// Flush stores the queued records. A full load replaces the table contents
// even when nothing is queued.
func (w *SQLWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.incremental && len(w.pending) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", w.d.name, err)
	}
	defer tx.Rollback()

	if !w.incremental {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+w.d.quote(w.table)); err != nil {
			return fmt.Errorf("%s: clear: %w", w.d.name, err)
		}
	}

	for i := 0; i < len(w.pending); i += batchSize {
		end := min(i+batchSize, len(w.pending))
		if err := w.insertBatch(ctx, tx, w.pending[i:end]); err != nil {
			return fmt.Errorf("%s: insert: %w", w.d.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", w.d.name, err)
	}
	w.pending = nil
	return nil
}

func (w *SQLWriter) insertBatch(ctx context.Context, tx *sql.Tx, batch []*models.StatsRecord) error {
	ncol := len(models.Columns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*ncol)

	for idx, rec := range batch {
		holders := make([]string, ncol)
		for j := range holders {
			holders[j] = w.d.placeholder(idx*ncol + j + 1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(holders, ",")+")")

		valueArgs = append(valueArgs, rec.EshopID, rec.Date)
		for _, col := range models.Columns[2:] {
			v, ok := rec.Value(models.Field(col))
			valueArgs = append(valueArgs, sql.NullString{String: v, Valid: ok})
		}
	}

	updates := make([]string, 0, ncol)
	for _, col := range models.Columns {
		if isKey(col) {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", w.d.quote(col), w.d.quote(col)))
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES %s
		ON CONFLICT (%s) DO UPDATE SET %s
	`, w.d.quote(w.table), w.quoteList(models.Columns), strings.Join(valueStrings, ","),
		w.quoteList(models.PrimaryKey), strings.Join(updates, ", "))

	_, err := tx.ExecContext(ctx, query, valueArgs...)
	return err
}

// FetchAll retrieves every stored record ordered by key.
func (w *SQLWriter) FetchAll(ctx context.Context) ([]*models.StatsRecord, error) {
	rows, err := w.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		w.quoteList(models.Columns), w.d.quote(w.table), w.quoteList(models.PrimaryKey)))
	if err != nil {
		return nil, fmt.Errorf("%s: fetch all: %w", w.d.name, err)
	}
	defer rows.Close()

	var records []*models.StatsRecord
	for rows.Next() {
		vals := make([]sql.NullString, len(models.Columns))
		dest := make([]any, len(vals))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", w.d.name, err)
		}

		rec := models.NewStatsRecord(vals[0].String, vals[1].String)
		for i, col := range models.Columns[2:] {
			if v := vals[i+2]; v.Valid {
				rec.Metrics[models.Field(col)] = v.String
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close flushes pending records and closes the database.
func (w *SQLWriter) Close() error {
	if err := w.Flush(context.Background()); err != nil {
		_ = w.db.Close()
		return err
	}
	return w.db.Close()
}

// Abort drops the queued records and closes the database untouched.
func (w *SQLWriter) Abort() error {
	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()
	return w.db.Close()
}

func (w *SQLWriter) quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = w.d.quote(c)
	}
	return strings.Join(quoted, ", ")
}

func isKey(col string) bool {
	for _, k := range models.PrimaryKey {
		if k == col {
			return true
		}
	}
	return false
}
