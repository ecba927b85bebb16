// Package locale holds the per-country description of the merchant
// administration: where it lives, which labels drive the login flow and how
// the statistics table names its columns.
package locale

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"heureka-stats/models"
)

// ErrUnsupportedLocale is returned for any country code not in the table.
var ErrUnsupportedLocale = errors.New("country not supported")

// StatsCategory is the fixed "all categories" filter of the statistics page.
const StatsCategory = "-4"

// Locale describes one country site.
type Locale struct {
	Code string

	// BaseURL is the public origin where the login flow starts.
	BaseURL string
	// StatsURL is the statistics endpoint queried once per day.
	StatsURL string

	ConsentLabel   string
	AdminLinkLabel string
	SubmitLabel    string

	// TotalSentinels are first-cell values of the totals-only row rendered
	// for days without activity.
	TotalSentinels []string
	// CurrencyTokens are stripped from every cell value.
	CurrencyTokens []string
	// Columns maps the header label shown on the page to a canonical field.
	Columns map[string]models.Field
}

var locales = map[string]*Locale{
	"cz": {
		Code:           "cz",
		BaseURL:        "https://www.heureka.cz/",
		StatsURL:       "https://sluzby.heureka.cz/obchody/statistiky/",
		ConsentLabel:   "Povolit vše",
		AdminLinkLabel: "Administrace",
		SubmitLabel:    "Přihlásit se",
		TotalSentinels: []string{"Celkem"},
		CurrencyTokens: []string{"Kč"},
		Columns: map[string]models.Field{
			"Návštěvy":            models.FieldVisits,
			"CPC":                 models.FieldCPC,
			"Náklady":             models.FieldSpend,
			"Konverzní poměr":     models.FieldConversionRate,
			"Obj":                 models.FieldOrders,
			"Průměrná objednávka": models.FieldAOV,
			"Obrat":               models.FieldTransactionRevenue,
			"Náklady z obratu":    models.FieldPNO,
		},
	},
	"sk": {
		Code:           "sk",
		BaseURL:        "https://www.heureka.sk/",
		StatsURL:       "https://sluzby.heureka.sk/obchody/statistiky/",
		ConsentLabel:   "Povoliť všetko",
		AdminLinkLabel: "Administrácia",
		SubmitLabel:    "Prihlásiť sa",
		TotalSentinels: []string{"Celkem", "Celkom", "Spolu"},
		CurrencyTokens: []string{"€"},
		Columns: map[string]models.Field{
			"Návštevy":             models.FieldVisits,
			"CPC":                  models.FieldCPC,
			"Náklady":              models.FieldSpend,
			"Konverzný pomer":      models.FieldConversionRate,
			"Obj":                  models.FieldOrders,
			"Priemerná objednávka": models.FieldAOV,
			"Obrat":                models.FieldTransactionRevenue,
			"Náklady z obratu":     models.FieldPNO,
		},
	},
}

// Lookup returns the descriptor for a country code such as "cz".
func Lookup(code string) (*Locale, error) {
	l, ok := locales[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedLocale, code, strings.Join(Codes(), ", "))
	}
	return l, nil
}

// Supported reports whether code names a known country site.
func Supported(code string) bool {
	_, err := Lookup(code)
	return err == nil
}

// Codes lists the supported country codes in a stable order.
func Codes() []string {
	codes := make([]string, 0, len(locales))
	for c := range locales {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Field maps a normalized header label to its canonical field.
func (l *Locale) Field(label string) (models.Field, bool) {
	f, ok := l.Columns[label]
	return f, ok
}

// IsTotal reports whether a first-cell value is the grand-total sentinel.
func (l *Locale) IsTotal(value string) bool {
	for _, s := range l.TotalSentinels {
		if value == s {
			return true
		}
	}
	return false
}
