package models

import (
	"errors"
	"time"
)

// DateLayout is the calendar-day format used in requests and in the output.
const DateLayout = "2006-01-02"

// Field is a canonical metric column of the output table.
type Field string

const (
	FieldVisits             Field = "visits"
	FieldCPC                Field = "cpc"
	FieldSpend              Field = "spend"
	FieldConversionRate     Field = "conversion_rate"
	FieldOrders             Field = "orders"
	FieldAOV                Field = "aov"
	FieldTransactionRevenue Field = "transaction_revenue"
	FieldPNO                Field = "pno"
)

// Columns is the fixed column order expected by every output writer.
var Columns = []string{
	"eshop_id", "date",
	string(FieldPNO), string(FieldConversionRate), string(FieldSpend), string(FieldAOV),
	string(FieldCPC), string(FieldOrders), string(FieldVisits), string(FieldTransactionRevenue),
}

// PrimaryKey identifies a row for incremental loads.
var PrimaryKey = []string{"eshop_id", "date"}

// Credentials are the merchant account login. They are never logged.
type Credentials struct {
	Email    string
	Password string
}

// String redacts the password so Credentials can be passed to a logger safely.
func (c Credentials) String() string {
	return c.Email + ":***"
}

// ReportWindow is an inclusive range of calendar days.
type ReportWindow struct {
	Start time.Time
	End   time.Time
}

// Chunk is one single-day unit of a ReportWindow.
type Chunk struct {
	StartDate string
}

// StatsRecord is one day of shop statistics. Metric values are kept as the
// cleaned strings shown on the page; a missing column is absent from Metrics.
type StatsRecord struct {
	EshopID string
	Date    string
	Metrics map[Field]string
}

// NewStatsRecord returns a record carrying only its key.
func NewStatsRecord(eshopID, date string) *StatsRecord {
	return &StatsRecord{EshopID: eshopID, Date: date, Metrics: make(map[Field]string)}
}

// Key returns the (eshop_id, date) identity of the record.
func (r *StatsRecord) Key() string {
	return r.EshopID + "|" + r.Date
}

// Value returns the metric for f and whether it was present on the page.
func (r *StatsRecord) Value(f Field) (string, bool) {
	v, ok := r.Metrics[f]
	return v, ok
}

// Row flattens the record in Columns order. Missing metrics are empty strings.
func (r *StatsRecord) Row() []string {
	row := make([]string, 0, len(Columns))
	row = append(row, r.EshopID, r.Date)
	for _, col := range Columns[2:] {
		row = append(row, r.Metrics[Field(col)])
	}
	return row
}

// OutcomeKind tags the result of a single date extraction. The zero value
// is OutcomeUnknown, so an Outcome returned next to an error is never a row.
type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeRow
	OutcomeNoData
	OutcomeSessionInvalid
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRow:
		return "row"
	case OutcomeNoData:
		return "no_data"
	case OutcomeSessionInvalid:
		return "session_invalid"
	default:
		return "unknown"
	}
}

// Outcome is what the extractor and the fetcher produce for one date.
// Record is set only for OutcomeRow, Cause only for OutcomeSessionInvalid.
type Outcome struct {
	Kind   OutcomeKind
	Record *StatsRecord
	Cause  error
}

// RowOutcome wraps a parsed record.
func RowOutcome(rec *StatsRecord) Outcome {
	return Outcome{Kind: OutcomeRow, Record: rec}
}

// NoDataOutcome marks a day without activity.
func NoDataOutcome() Outcome {
	return Outcome{Kind: OutcomeNoData}
}

// SessionInvalidOutcome marks a page that does not look like an authenticated
// statistics page.
func SessionInvalidOutcome(cause error) Outcome {
	if cause == nil {
		cause = errors.New("session invalid")
	}
	return Outcome{Kind: OutcomeSessionInvalid, Cause: cause}
}

// RunReport summarises one extraction run.
type RunReport struct {
	RunID       string
	Country     string
	EshopID     string
	From        string
	To          string
	Clamped     bool
	Dates       int
	Written     int
	NoData      int
	Skipped     []string
	Relogins    int
	StartedAt   time.Time
	CompletedAt time.Time
}
