package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"heureka-stats/locale"
	"heureka-stats/models"
	"heureka-stats/scraper/heureka"
	"heureka-stats/storage"
	"heureka-stats/utils"
)

// Authenticator logs in and installs the session on the fetch client.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// DateFetcher returns the outcome for a single day.
type DateFetcher interface {
	Fetch(ctx context.Context, date string) (models.Outcome, error)
}

// RunOptions identifies what a Runner extracts.
type RunOptions struct {
	RunID   string
	Country string
	EshopID string
	Window  models.ReportWindow
	// Now is the reference for the retention clamp. Defaults to time.Now.
	Now func() time.Time
}

// Runner drives one extraction: a single login, then one fetch per day,
// feeding the rows to the writer in date order.
type Runner struct {
	auth     Authenticator
	fetcher  DateFetcher
	writer   storage.RecordWriter
	throttle *utils.Throttle
	logger   *utils.Logger
	metrics  *utils.Metrics
}

// NewRunner wires the run dependencies. throttle may be nil.
func NewRunner(auth Authenticator, fetcher DateFetcher, writer storage.RecordWriter,
	throttle *utils.Throttle, logger *utils.Logger, metrics *utils.Metrics) *Runner {
	return &Runner{
		auth:     auth,
		fetcher:  fetcher,
		writer:   writer,
		throttle: throttle,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes the extraction. A day whose session could not be recovered
// is skipped and listed in the report. A failed login, a writer error or a
// cancelled context ends the run with an error. The writer is closed when
// the run succeeds and aborted otherwise, so a failed run leaves no
// complete output behind.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (report *models.RunReport, err error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	report = &models.RunReport{
		RunID:     opts.RunID,
		Country:   opts.Country,
		EshopID:   opts.EshopID,
		StartedAt: now(),
	}

	if !locale.Supported(opts.Country) {
		_ = r.writer.Abort()
		return report, fmt.Errorf("%w: %q (supported: %v)", locale.ErrUnsupportedLocale, opts.Country, locale.Codes())
	}

	window, clamped, err := ClampWindow(opts.Window, report.StartedAt)
	if err != nil {
		_ = r.writer.Abort()
		return report, err
	}
	report.Clamped = clamped
	report.From = window.Start.Format(models.DateLayout)
	report.To = window.End.Format(models.DateLayout)
	if clamped {
		r.logger.Warn("[run] statistics are kept for %d days, start moved from %s to %s",
			RetentionDays, opts.Window.Start.Format(models.DateLayout), report.From)
	}

	chunks := SplitDays(window)
	report.Dates = len(chunks)

	defer func() {
		if err != nil {
			if aerr := r.writer.Abort(); aerr != nil {
				r.logger.Warn("[run] discarding output: %v", aerr)
			}
		} else if cerr := r.writer.Close(); cerr != nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
		if f, ok := r.fetcher.(interface{ Relogins() int }); ok {
			report.Relogins = f.Relogins()
		}
		report.CompletedAt = now()
	}()

	r.logger.Info("[run] %s shop %s: %d day(s) from %s to %s",
		opts.Country, opts.EshopID, len(chunks), report.From, report.To)

	if err := r.auth.Authenticate(ctx); err != nil {
		return report, err
	}

	for _, chunk := range chunks {
		if r.throttle != nil {
			if err := r.throttle.Wait(ctx); err != nil {
				return report, err
			}
		}

		outcome, ferr := r.fetcher.Fetch(ctx, chunk.StartDate)
		if ferr != nil {
			if fatal(ctx, ferr) {
				return report, ferr
			}
			r.logger.Error("[run] %s: skipped: %v", chunk.StartDate, ferr)
			report.Skipped = append(report.Skipped, chunk.StartDate)
			continue
		}

		switch outcome.Kind {
		case models.OutcomeRow:
			if err := r.writer.Write(outcome.Record); err != nil {
				return report, fmt.Errorf("write %s: %w", chunk.StartDate, err)
			}
			r.metrics.IncRows()
			report.Written++
			r.logger.Debug("[run] %s: row written", chunk.StartDate)
		case models.OutcomeNoData:
			report.NoData++
			r.logger.Warn("[run] %s: no data for this day", chunk.StartDate)
		default:
			r.logger.Error("[run] %s: skipped: %v", chunk.StartDate, outcome.Cause)
			report.Skipped = append(report.Skipped, chunk.StartDate)
		}
	}

	r.logger.Info("[run] done: %d written, %d empty, %d skipped",
		report.Written, report.NoData, len(report.Skipped))
	return report, nil
}

// fatal reports whether a fetch error must stop the whole run rather than
// just the current day.
func fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, heureka.ErrLoginFailed) ||
		errors.Is(err, heureka.ErrLoginExhausted) ||
		errors.Is(err, locale.ErrUnsupportedLocale)
}
