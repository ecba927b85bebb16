package storage

import (
	"errors"

	"heureka-stats/models"
)

// ErrDuplicateRecord is returned when a run hands the same (eshop_id, date)
// to a writer twice.
var ErrDuplicateRecord = errors.New("duplicate record")

// RecordWriter is the interface any output backend must satisfy. Records
// are only guaranteed to be persisted once Close returns nil. Abort releases
// the backend without publishing what was written.
type RecordWriter interface {
	Write(rec *models.StatsRecord) error
	Close() error
	Abort() error
}
