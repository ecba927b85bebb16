package heureka

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"heureka-stats/locale"
	"heureka-stats/models"
)

// spaceArtifacts are the non-breaking and thin spaces the site uses for
// digit grouping and before currency symbols.
var spaceArtifacts = strings.NewReplacer(
	"\u00a0", "",
	"\u202f", "",
	"\u2009", "",
)

// Extract parses one statistics page into an Outcome. It never performs I/O
// and never panics: anything that is not a recognisable statistics table is
// reported as an invalid session.
//
// A missing <tbody> is the only signal the site gives for an expired session,
// so a layout change on the site would show up here as repeated re-logins.
func Extract(html string, loc *locale.Locale, eshopID, date string) (outcome models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = models.SessionInvalidOutcome(fmt.Errorf("%w: %v", ErrTableStructure, r))
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.SessionInvalidOutcome(fmt.Errorf("%w: parse html: %v", ErrTableStructure, err))
	}

	body := doc.Find("tbody").First()
	if body.Length() == 0 {
		return models.SessionInvalidOutcome(fmt.Errorf("%w: no table body", ErrSessionInvalid))
	}

	cells := body.Find("tr").First().Find("td")
	if cells.Length() == 0 {
		return models.SessionInvalidOutcome(fmt.Errorf("%w: no data row", ErrTableStructure))
	}

	values := make([]string, 0, cells.Length())
	cells.Each(func(_ int, s *goquery.Selection) {
		values = append(values, CleanValue(s.Text(), loc))
	})

	if loc.IsTotal(values[0]) {
		return models.NoDataOutcome()
	}

	// The first header row only groups metrics; labels are on the second.
	headerRows := doc.Find("thead").First().Find("tr")
	if headerRows.Length() < 2 {
		return models.SessionInvalidOutcome(fmt.Errorf("%w: %d header rows", ErrTableStructure, headerRows.Length()))
	}

	var labels []string
	headerRows.Eq(1).Find("th, td").Each(func(_ int, s *goquery.Selection) {
		labels = append(labels, NormalizeLabel(s.Text()))
	})

	rec := models.NewStatsRecord(eshopID, date)
	for i := 0; i < len(labels) && i < len(values); i++ {
		if field, ok := loc.Field(labels[i]); ok {
			rec.Metrics[field] = values[i]
		}
	}
	return models.RowOutcome(rec)
}

// NormalizeLabel turns a header cell into the form used as a key in the
// locale column table.
func NormalizeLabel(s string) string {
	s = repairMojibake(s)
	s = strings.Join(strings.Fields(s), " ")
	return norm.NFC.String(s)
}

// CleanValue strips currency symbols, percent signs and space artifacts from
// a cell. Applying it twice gives the same result as applying it once.
func CleanValue(s string, loc *locale.Locale) string {
	for {
		next := cleanPass(s, loc)
		if next == s {
			return s
		}
		s = next
	}
}

// cleanPass runs one round of CleanValue. Removing a token can expose
// another one (e.g. "K\u00a0č"), so CleanValue repeats it until nothing changes.
func cleanPass(s string, loc *locale.Locale) string {
	s = norm.NFC.String(repairMojibake(s))
	s = spaceArtifacts.Replace(s)
	for _, token := range loc.CurrencyTokens {
		s = strings.ReplaceAll(s, token, "")
	}
	s = strings.ReplaceAll(s, "%", "")
	return strings.TrimSpace(s)
}

// repairMojibake undoes UTF-8 text that was decoded as Latin-1 upstream,
// e.g. "NÃ¡klady" back to "Náklady". Text that does not round-trip to valid
// UTF-8 is returned unchanged.
func repairMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÂÄÅâ") {
		return s
	}
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil || !utf8.Valid(b) {
		return s
	}
	return string(b)
}
