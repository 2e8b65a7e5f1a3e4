package parsers

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotlens/backend/internal/domain"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParsePrice(t *testing.T) {
	cases := map[string]*float64{
		"USD $12,500":   f(12500),
		"Sold for $950": f(950),
		"£45,000":       f(45000),
		"no bids yet":   nil,
		"":              nil,
	}
	for in, want := range cases {
		got := parsePrice(in)
		if want == nil {
			assert.Nil(t, got, "input %q", in)
		} else {
			require.NotNil(t, got, "input %q", in)
			assert.Equal(t, *want, *got, "input %q", in)
		}
	}
}

func f(v float64) *float64 { return &v }

func TestParseBidCount(t *testing.T) {
	assert.Equal(t, 23, parseBidCount("23 bids"))
	assert.Equal(t, 1205, parseBidCount("1,205 bids placed"))
	assert.Equal(t, 0, parseBidCount("no bids"))
}

func TestParseMileage(t *testing.T) {
	mi, unit := parseMileage("17k Miles Shown on Replacement Speedometer")
	require.NotNil(t, mi)
	assert.Equal(t, 17000, *mi)
	assert.Equal(t, domain.UnitMiles, unit)

	km, unit := parseMileage("Odometer: 45,000 km")
	require.NotNil(t, km)
	assert.Equal(t, 45000, *km)
	assert.Equal(t, domain.UnitKM, unit)

	none, _ := parseMileage("clean title, no accidents")
	assert.Nil(t, none)
}

func TestParseTransmission_GuardsOdometerText(t *testing.T) {
	// The speedometer bullet must not be read as a gearbox.
	assert.Equal(t, "", parseTransmission("17k Miles Shown on Replacement Speedometer"))
	assert.Equal(t, "", parseTransmission("4-Speed Reading Shown on Replacement Speedometer"))

	assert.Equal(t, "5-Speed Manual", parseTransmission("5-Speed Manual Transmission"))
	assert.Equal(t, "Automatic", parseTransmission("Automatic Transmission"))
	assert.Equal(t, "", parseTransmission("Limited-Slip Differential"))

	// The guard only disarms the "...speed" pattern: an explicit gearbox word
	// survives mileage talk in the same breath.
	assert.Equal(t, "Automatic", parseTransmission("Automatic, 30k Miles Shown"))
	assert.Equal(t, "Manual", parseTransmission("5-Speed Manual with 72k Miles Shown"))
}

func TestParseTitle(t *testing.T) {
	year, mk, model, trim := parseTitle("1972 Datsun 240Z Series I")
	assert.Equal(t, 1972, year)
	assert.Equal(t, "Datsun", mk)
	assert.Equal(t, "240Z", model)
	assert.Equal(t, "Series I", trim)

	year, mk, model, _ = parseTitle("1964 Alfa Romeo Giulia Spider")
	assert.Equal(t, 1964, year)
	assert.Equal(t, "Alfa Romeo", mk)
	assert.Equal(t, "Giulia", model)

	year, mk, model, trim = parseTitle("Porsche 911")
	assert.Equal(t, 0, year)
	assert.Equal(t, "Porsche", mk)
	assert.Equal(t, "911", model)
	assert.Equal(t, "", trim)
}

func TestResolveEndTime_AttributeFirst(t *testing.T) {
	doc := docFrom(t, `<html><body>
		<time datetime="2025-06-05T18:00:00Z"></time>
		<script type="application/ld+json">{"endDate":"2025-01-01T00:00:00Z"}</script>
	</body></html>`)

	got := resolveEndTime(doc, attrCandidate{"time[datetime]", "datetime"})
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 5, 18, 0, 0, 0, time.UTC), *got)
}

func TestResolveEndTime_JSONLDFallback(t *testing.T) {
	doc := docFrom(t, `<html><body>
		<script type="application/ld+json">
			{"@type":"Event","offers":{"price":100},"endDate":"2025-06-05T18:00:00Z"}
		</script>
	</body></html>`)

	got := resolveEndTime(doc, attrCandidate{"time[datetime]", "datetime"})
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 5, 18, 0, 0, 0, time.UTC), *got)
}

func TestResolveEndTime_TextScanAtUTCNoon(t *testing.T) {
	doc := docFrom(t, `<html><body><p>This auction ended on June 5, 2025.</p></body></html>`)

	got := resolveEndTime(doc)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC), *got)
}

func TestResolveEndTime_NoSource(t *testing.T) {
	doc := docFrom(t, `<html><body><p>nothing here</p></body></html>`)
	assert.Nil(t, resolveEndTime(doc))
}

func TestScanSoldDateText(t *testing.T) {
	got := scanSoldDateText("Sold for $15,000 on June 5, 2025")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC), *got)

	assert.Nil(t, scanSoldDateText("Sold for $15,000"))
}

func TestParseTimestamp_Epoch(t *testing.T) {
	got := parseTimestamp("1748822400")
	require.NotNil(t, got)
	assert.Equal(t, int64(1748822400), got.Unix())
}

func TestAbsURL(t *testing.T) {
	assert.Equal(t, "https://example.com/listing/a", absURL("https://example.com", "/listing/a"))
	assert.Equal(t, "https://cdn.example.com/x.jpg", absURL("https://example.com", "https://cdn.example.com/x.jpg"))
	assert.Equal(t, "", absURL("https://example.com", ""))
}
