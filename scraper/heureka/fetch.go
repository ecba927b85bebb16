package heureka

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"heureka-stats/locale"
	"heureka-stats/models"
	"heureka-stats/utils"
)

// Authenticator establishes a fresh session on the shared HTTP client.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// FetcherOptions tunes the session-recovery policy of a Fetcher.
type FetcherOptions struct {
	// MaxAttempts bounds the GETs per date, re-logins included between them.
	MaxAttempts int
	BaseDelay   time.Duration
}

// Fetcher downloads and parses the statistics page one day at a time.
type Fetcher struct {
	http    *resty.Client
	loc     *locale.Locale
	eshopID string
	auth    Authenticator
	retry   *utils.RetryPolicy
	logger  *utils.Logger
	metrics *utils.Metrics

	relogins int
}

// NewFetcher creates a Fetcher reading through client, whose cookies are
// maintained by auth.
func NewFetcher(client *resty.Client, loc *locale.Locale, eshopID string, auth Authenticator,
	opts FetcherOptions, logger *utils.Logger, metrics *utils.Metrics) *Fetcher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	return &Fetcher{
		http:    client,
		loc:     loc,
		eshopID: eshopID,
		auth:    auth,
		retry: &utils.RetryPolicy{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   opts.BaseDelay,
			Retryable:   func(err error) bool { return errors.Is(err, ErrSessionInvalid) },
			Logger:      logger,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch returns the outcome for one date. When the page looks
// unauthenticated the fetcher logs in again and repeats the same request, up
// to the configured number of attempts. After that it returns a
// SessionInvalid outcome together with the error. A failed re-login is
// returned as is and should stop the run.
func (f *Fetcher) Fetch(ctx context.Context, date string) (models.Outcome, error) {
	var outcome models.Outcome

	err := f.retry.Do(ctx, "fetch "+date, func(attempt int) error {
		if attempt > 1 {
			f.logger.Info("[fetch] %s: session looks expired, logging in again", date)
			f.relogins++
			f.metrics.IncRelogin()
			if err := f.auth.Authenticate(ctx); err != nil {
				return err
			}
		}

		o, err := f.fetchOnce(ctx, date)
		if err != nil {
			f.metrics.IncFetch(outcomeLabel(err))
			return err
		}
		f.metrics.IncFetch(o.Kind.String())
		outcome = o
		if o.Kind == models.OutcomeSessionInvalid {
			return o.Cause
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return models.SessionInvalidOutcome(err), err
		}
		return models.Outcome{}, err
	}
	return outcome, nil
}

// Relogins reports how many session recoveries the fetcher triggered.
func (f *Fetcher) Relogins() int {
	return f.relogins
}

func (f *Fetcher) fetchOnce(ctx context.Context, date string) (models.Outcome, error) {
	start := time.Now()
	res, err := f.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"from": date,
			"to":   date,
			"shop": f.eshopID,
			"cat":  locale.StatsCategory,
		}).
		Get(f.loc.StatsURL)
	f.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		return models.Outcome{}, fmt.Errorf("stats request for %s: %w", date, err)
	}

	switch code := res.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return models.SessionInvalidOutcome(fmt.Errorf("%w: http status %d", ErrSessionInvalid, code)), nil
	case code >= http.StatusBadRequest:
		return models.Outcome{}, &HTTPStatusError{StatusCode: code, URL: res.Request.URL}
	}

	body, err := decodeBody(res)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("stats response for %s: %w", date, err)
	}

	f.logger.Debug("[fetch] %s: %d bytes", date, len(body))
	return Extract(body, f.loc, f.eshopID, date), nil
}

// decodeBody converts the response to UTF-8 according to its Content-Type
// or <meta charset>.
func decodeBody(res *resty.Response) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(res.Body()), res.Header().Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("charset: %w", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
