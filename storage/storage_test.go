package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heureka-stats/models"
)

func record(date string, metrics map[models.Field]string) *models.StatsRecord {
	rec := models.NewStatsRecord("12345", date)
	for k, v := range metrics {
		rec.Metrics[k] = v
	}
	return rec
}

func TestCSVWriterWritesTableAndManifest(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir, "stats", true)
	require.NoError(t, err)

	require.NoError(t, w.Write(record("2024-05-01", map[models.Field]string{
		models.FieldVisits: "1234",
		models.FieldPNO:    "7,59",
	})))
	require.NoError(t, w.Write(record("2024-05-03", map[models.Field]string{
		models.FieldOrders: "4",
	})))
	require.NoError(t, w.Close())

	f, err := os.Open(filepath.Join(dir, "stats.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		models.Columns,
		{"12345", "2024-05-01", "7,59", "", "", "", "", "", "1234", ""},
		{"12345", "2024-05-03", "", "", "", "", "", "4", "", ""},
	}, rows)

	data, err := os.ReadFile(filepath.Join(dir, "stats.csv.manifest"))
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, Manifest{Incremental: true, PrimaryKey: []string{"eshop_id", "date"}, Columns: models.Columns}, m)
}

func TestCSVWriterRejectsDuplicateKey(t *testing.T) {
	w, err := NewCSVWriter(t.TempDir(), "stats", false)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(record("2024-05-01", nil)))
	assert.ErrorIs(t, w.Write(record("2024-05-01", nil)), ErrDuplicateRecord)
}

func newSQLite(t *testing.T, path string, incremental bool) *SQLWriter {
	t.Helper()
	w, err := NewSQLiteWriter(context.Background(), path, "stats", incremental)
	require.NoError(t, err)
	return w
}

func TestSQLiteIncrementalUpsert(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "stats.db")

	first := newSQLite(t, path, true)
	require.NoError(t, first.Write(record("2024-05-01", map[models.Field]string{models.FieldVisits: "10"})))
	require.NoError(t, first.Write(record("2024-05-02", map[models.Field]string{models.FieldVisits: "20"})))
	require.NoError(t, first.Close())

	second := newSQLite(t, path, true)
	defer second.Close()
	require.NoError(t, second.Write(record("2024-05-02", map[models.Field]string{
		models.FieldVisits: "25",
		models.FieldOrders: "2",
	})))
	require.NoError(t, second.Flush(ctx))

	got, err := second.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, map[models.Field]string{models.FieldVisits: "10"}, got[0].Metrics)
	assert.Equal(t, "2024-05-02", got[1].Date)
	assert.Equal(t, map[models.Field]string{models.FieldVisits: "25", models.FieldOrders: "2"}, got[1].Metrics)
}

func TestSQLiteFullLoadReplacesTable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stats.db")

	first := newSQLite(t, path, false)
	require.NoError(t, first.Write(record("2024-04-01", nil)))
	require.NoError(t, first.Close())

	second := newSQLite(t, path, false)
	defer second.Close()
	require.NoError(t, second.Write(record("2024-05-01", map[models.Field]string{models.FieldCPC: "2,15"})))
	require.NoError(t, second.Flush(ctx))

	got, err := second.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-05-01", got[0].Date)
	assert.Equal(t, "2,15", got[0].Metrics[models.FieldCPC])
}

func TestSQLiteBatchesLargeLoads(t *testing.T) {
	ctx := context.Background()
	w := newSQLite(t, filepath.Join(t.TempDir(), "stats.db"), true)
	defer w.Close()

	for i := 0; i < 2*batchSize+7; i++ {
		rec := models.NewStatsRecord("12345", "d"+string(rune('A'+i/26))+string(rune('a'+i%26)))
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Flush(ctx))

	got, err := w.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2*batchSize+7)
}

func TestSQLiteRejectsDuplicateKey(t *testing.T) {
	w := newSQLite(t, filepath.Join(t.TempDir(), "stats.db"), true)
	defer w.Close()

	require.NoError(t, w.Write(record("2024-05-01", nil)))
	assert.ErrorIs(t, w.Write(record("2024-05-01", nil)), ErrDuplicateRecord)
}

func TestCSVWriterAbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir, "stats", false)
	require.NoError(t, err)
	require.NoError(t, w.Write(record("2024-05-01", nil)))

	require.NoError(t, w.Abort())
	assert.NoFileExists(t, filepath.Join(dir, "stats.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "stats.csv.manifest"))
}

func TestSQLiteAbortKeepsExistingRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stats.db")

	first := newSQLite(t, path, false)
	require.NoError(t, first.Write(record("2024-04-01", nil)))
	require.NoError(t, first.Close())

	aborted := newSQLite(t, path, false)
	require.NoError(t, aborted.Write(record("2024-05-01", nil)))
	require.NoError(t, aborted.Abort())

	check := newSQLite(t, path, true)
	defer check.Close()
	got, err := check.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-04-01", got[0].Date)
}
