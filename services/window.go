package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"heureka-stats/models"
)

// RetentionDays is how far back the site keeps statistics.
const RetentionDays = 365

// ErrWindowOutOfRange means no day of the requested window is still retained.
var ErrWindowOutOfRange = errors.New("report window lies entirely outside the retained history")

var relativeRegexp = regexp.MustCompile(`^(\d+)\s+(day|week|month)s?\s+ago$`)

// ParseDate accepts YYYY-MM-DD, "today", "yesterday" and "N days|weeks|months ago",
// resolved against now. The result is midnight UTC of that calendar day.
func ParseDate(raw string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	today := truncateDay(now)

	switch s {
	case "":
		return time.Time{}, errors.New("empty date")
	case "today", "now":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	if m := relativeRegexp.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %q: %w", raw, err)
		}
		switch m[2] {
		case "day":
			return today.AddDate(0, 0, -n), nil
		case "week":
			return today.AddDate(0, 0, -7*n), nil
		default:
			return today.AddDate(0, -n, 0), nil
		}
	}

	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: expected YYYY-MM-DD or a relative date", raw)
	}
	return t, nil
}

// ParseWindow resolves both bounds and checks their order.
func ParseWindow(from, to string, now time.Time) (models.ReportWindow, error) {
	start, err := ParseDate(from, now)
	if err != nil {
		return models.ReportWindow{}, fmt.Errorf("date_from: %w", err)
	}
	end, err := ParseDate(to, now)
	if err != nil {
		return models.ReportWindow{}, fmt.Errorf("date_to: %w", err)
	}
	if start.After(end) {
		return models.ReportWindow{}, fmt.Errorf("date_from %s is after date_to %s",
			start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	return models.ReportWindow{Start: start, End: end}, nil
}

// ClampWindow raises the start of w to exactly RetentionDays before now when
// it reaches further back. It reports whether the start was moved.
func ClampWindow(w models.ReportWindow, now time.Time) (models.ReportWindow, bool, error) {
	limit := truncateDay(now).AddDate(0, 0, -RetentionDays)
	clamped := false
	if truncateDay(w.Start).Before(limit) {
		w.Start = limit
		clamped = true
	}
	if truncateDay(w.End).Before(w.Start) {
		return w, clamped, fmt.Errorf("%w: window ends %s, oldest available day is %s",
			ErrWindowOutOfRange, w.End.Format(models.DateLayout), limit.Format(models.DateLayout))
	}
	return w, clamped, nil
}

// SplitDays expands w into one chunk per calendar day, in order.
func SplitDays(w models.ReportWindow) []models.Chunk {
	var chunks []models.Chunk
	end := truncateDay(w.End)
	for d := truncateDay(w.Start); !d.After(end); d = d.AddDate(0, 0, 1) {
		chunks = append(chunks, models.Chunk{StartDate: d.Format(models.DateLayout)})
	}
	return chunks
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
