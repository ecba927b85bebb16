package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"heureka-stats/models"
	"heureka-stats/utils"
)

// Manifest describes the CSV table to the loader that picks it up.
type Manifest struct {
	Incremental bool     `json:"incremental"`
	PrimaryKey  []string `json:"primary_key"`
	Columns     []string `json:"columns"`
}

// CSVWriter writes records to <dir>/<table>.csv and its manifest.
// It is safe for concurrent use.
type CSVWriter struct {
	mu          sync.Mutex
	path        string
	incremental bool
	file        *os.File
	writer      *csv.Writer
	keys        *utils.KeySet
}

// NewCSVWriter creates (or truncates) the table file and writes the header
// row. Intermediate directories are created automatically.
func NewCSVWriter(dir, table string, incremental bool) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	path := filepath.Join(dir, table+".csv")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(models.Columns); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{
		path:        path,
		incremental: incremental,
		file:        f,
		writer:      w,
		keys:        utils.NewKeySet(),
	}, nil
}

// Write appends one record in column order.
func (c *CSVWriter) Write(rec *models.StatsRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.keys.Add(rec.Key()) {
		return fmt.Errorf("csv: %w: %s", ErrDuplicateRecord, rec.Key())
	}
	if err := c.writer.Write(rec.Row()); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}
	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes the table, closes it and writes the manifest next to it.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.file.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err := c.file.Close(); err != nil {
		return fmt.Errorf("csv: close: %w", err)
	}

	data, err := json.MarshalIndent(Manifest{
		Incremental: c.incremental,
		PrimaryKey:  models.PrimaryKey,
		Columns:     models.Columns,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("csv: encode manifest: %w", err)
	}
	if err := os.WriteFile(c.path+".manifest", data, 0644); err != nil {
		return fmt.Errorf("csv: write manifest: %w", err)
	}
	return nil
}

// Abort closes the table file and removes it. No manifest is written.
func (c *CSVWriter) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.file.Close()
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("csv: remove %q: %w", c.path, err)
	}
	return nil
}
