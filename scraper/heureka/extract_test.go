package heureka

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heureka-stats/locale"
	"heureka-stats/models"
)

func mustLocale(t *testing.T, code string) *locale.Locale {
	t.Helper()
	loc, err := locale.Lookup(code)
	require.NoError(t, err)
	return loc
}

// statsPage renders a statistics table the way the site does: a grouping
// header row, a label row and one data row.
func statsPage(labels, values []string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="stats"><thead>`)
	fmt.Fprintf(&b, `<tr><th colspan="%d">Statistiky</th></tr><tr>`, len(labels))
	for _, l := range labels {
		fmt.Fprintf(&b, "<th>%s</th>", l)
	}
	b.WriteString(`</tr></thead><tbody><tr>`)
	for _, v := range values {
		fmt.Fprintf(&b, "<td>%s</td>", v)
	}
	b.WriteString(`</tr></tbody></table></body></html>`)
	return b.String()
}

var czLabels = []string{
	"Datum", "Návštěvy", "CPC", "Náklady", "Konverzní poměr", "Obj",
	"Průměrná objednávka", "Obrat", "Náklady&nbsp;z obratu",
}

var czValues = []string{
	"1. 5. 2024", "1&nbsp;234", "2,15&nbsp;Kč", "2&nbsp;653,10&nbsp;Kč", "1,85&nbsp;%", "23",
	"1&nbsp;520&nbsp;Kč", "34&nbsp;960&nbsp;Kč", "7,59&nbsp;%",
}

func TestExtractRow(t *testing.T) {
	loc := mustLocale(t, "cz")

	got := Extract(statsPage(czLabels, czValues), loc, "12345", "2024-05-01")
	require.Equal(t, models.OutcomeRow, got.Kind, "cause: %v", got.Cause)

	want := &models.StatsRecord{
		EshopID: "12345",
		Date:    "2024-05-01",
		Metrics: map[models.Field]string{
			models.FieldVisits:             "1234",
			models.FieldCPC:                "2,15",
			models.FieldSpend:              "2653,10",
			models.FieldConversionRate:     "1,85",
			models.FieldOrders:             "23",
			models.FieldAOV:                "1520",
			models.FieldTransactionRevenue: "34960",
			models.FieldPNO:                "7,59",
		},
	}
	if diff := cmp.Diff(want, got.Record); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractSlovakEuro(t *testing.T) {
	loc := mustLocale(t, "sk")
	labels := []string{"Dátum", "Návštevy", "Konverzný pomer", "Priemerná objednávka"}
	values := []string{"1. 5. 2024", "87", "2,3&nbsp;%", "48,90&nbsp;€"}

	got := Extract(statsPage(labels, values), loc, "777", "2024-05-01")
	require.Equal(t, models.OutcomeRow, got.Kind)
	assert.Equal(t, map[models.Field]string{
		models.FieldVisits:         "87",
		models.FieldConversionRate: "2,3",
		models.FieldAOV:            "48,90",
	}, got.Record.Metrics)
}

func TestExtractPartialColumnsKeepsKey(t *testing.T) {
	loc := mustLocale(t, "cz")

	got := Extract(statsPage([]string{"Datum", "Obj"}, []string{"1. 5. 2024", "4"}), loc, "12345", "2024-05-01")
	require.Equal(t, models.OutcomeRow, got.Kind)
	assert.Equal(t, "12345", got.Record.EshopID)
	assert.Equal(t, "2024-05-01", got.Record.Date)
	assert.Equal(t, map[models.Field]string{models.FieldOrders: "4"}, got.Record.Metrics)
}

func TestExtractGrandTotalIsNoData(t *testing.T) {
	for _, code := range locale.Codes() {
		loc := mustLocale(t, code)
		for _, sentinel := range loc.TotalSentinels {
			t.Run(code+"/"+sentinel, func(t *testing.T) {
				page := statsPage(czLabels, append([]string{sentinel}, czValues[1:]...))
				got := Extract(page, loc, "12345", "2024-05-01")
				assert.Equal(t, models.OutcomeNoData, got.Kind)
				assert.Nil(t, got.Record)
			})
		}
	}
}

func TestExtractWithoutTableBodyIsSessionInvalid(t *testing.T) {
	loc := mustLocale(t, "cz")
	pages := map[string]string{
		"login page":   `<html><body><form><input type="email"><button>Přihlásit se</button></form></body></html>`,
		"empty":        ``,
		"thead only":   `<table><thead><tr><th>a</th></tr><tr><th>Obj</th></tr></thead></table>`,
		"garbage":      `<<<>>> not html at all &&&`,
		"binary":       "\x00\x01\x02\xff\xfe",
		"unclosed tag": `<table><thead><tr><th>Obj`,
	}

	for name, page := range pages {
		t.Run(name, func(t *testing.T) {
			got := Extract(page, loc, "12345", "2024-05-01")
			assert.Equal(t, models.OutcomeSessionInvalid, got.Kind)
			assert.ErrorIs(t, got.Cause, ErrSessionInvalid)
			assert.Nil(t, got.Record)
		})
	}
}

func TestExtractMalformedTableIsSessionInvalid(t *testing.T) {
	loc := mustLocale(t, "cz")
	pages := map[string]string{
		"row without cells":  `<table><thead><tr><th>g</th></tr><tr><th>Obj</th></tr></thead><tbody><tr></tr></tbody></table>`,
		"single header row":  `<table><thead><tr><th>Obj</th></tr></thead><tbody><tr><td>4</td></tr></tbody></table>`,
		"no header at all":   `<table><tbody><tr><td>4</td></tr></tbody></table>`,
		"body without a row": `<table><thead><tr><th>g</th></tr><tr><th>Obj</th></tr></thead><tbody></tbody></table>`,
	}

	for name, page := range pages {
		t.Run(name, func(t *testing.T) {
			got := Extract(page, loc, "12345", "2024-05-01")
			assert.Equal(t, models.OutcomeSessionInvalid, got.Kind)
			assert.ErrorIs(t, got.Cause, ErrSessionInvalid)
		})
	}
}

func TestExtractRepairsMojibakeLabels(t *testing.T) {
	loc := mustLocale(t, "cz")
	// UTF-8 labels that were decoded as Latin-1 somewhere upstream.
	labels := []string{
		"Datum",
		"NÃ¡vÅ¡tÄ\u009bvy",
		"NÃ¡klady zÂ\u00a0obratu",
	}
	values := []string{"1. 5. 2024", "10", "5,5Â\u00a0%"}

	got := Extract(statsPage(labels, values), loc, "12345", "2024-05-01")
	require.Equal(t, models.OutcomeRow, got.Kind)
	assert.Equal(t, map[models.Field]string{
		models.FieldVisits: "10",
		models.FieldPNO:    "5,5",
	}, got.Record.Metrics)
}

func TestColumnMappingIsLocalePure(t *testing.T) {
	for _, a := range locale.Codes() {
		for _, b := range locale.Codes() {
			if a == b {
				continue
			}
			locA, locB := mustLocale(t, a), mustLocale(t, b)
			for label := range locA.Columns {
				if _, shared := locB.Columns[label]; shared {
					continue
				}
				page := statsPage([]string{"Datum", label}, []string{"1. 5. 2024", "42"})
				got := Extract(page, locB, "12345", "2024-05-01")
				require.Equal(t, models.OutcomeRow, got.Kind)
				assert.Empty(t, got.Record.Metrics, "%s label %q mapped under %s", a, label, b)
			}
		}
	}
}

func TestCleanValueIdempotent(t *testing.T) {
	inputs := []string{
		"2\u00a0653,10\u00a0Kč",
		" 1,85 % ",
		"48,90\u00a0€",
		"1\u202f234",
		"Â\u00a0KÄ\u008d",
		"Celkem",
		"",
		"12,5 %%",
		"1\u00a0K\u00a0č",
		"K\u00a0č",
		"KKčč",
		"Ã\u0083Â¡",
	}

	for _, code := range locale.Codes() {
		loc := mustLocale(t, code)
		for _, in := range inputs {
			once := CleanValue(in, loc)
			twice := CleanValue(once, loc)
			assert.Equal(t, once, twice, "locale %s input %q", code, in)
		}
	}
}

func TestCleanValue(t *testing.T) {
	cz := mustLocale(t, "cz")

	tests := []struct {
		raw  string
		want string
	}{
		{"2\u00a0653,10\u00a0Kč", "2653,10"},
		{"1,85\u00a0%", "1,85"},
		{"23", "23"},
		{"1Â\u00a0520Â\u00a0KÄ\u008d", "1520"},
		{"  7,59 % ", "7,59"},
		{"1\u00a0K\u00a0č", "1"},
		{"KKčč", ""},
		{"Ã\u0083Â¡", "á"},
	}

	for _, tt := range tests {
		if got := CleanValue(tt.raw, cz); got != tt.want {
			t.Errorf("CleanValue(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"  Náklady\u00a0z obratu ", "Náklady z obratu"},
		{"PrÅ¯mÄ\u009brnÃ¡ objednÃ¡vka", "Průměrná objednávka"},
		{"Obj", "Obj"},
		// Legitimate Latin-1 text must survive untouched.
		{"päť", "päť"},
		{"Ärger", "Ärger"},
	}

	for _, tt := range tests {
		if got := NormalizeLabel(tt.raw); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}
