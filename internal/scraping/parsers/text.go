// internal/scraping/parsers/text.go
package parsers

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotlens/backend/internal/domain"
)

// firstText tries selector candidates in order and returns the first
// non-empty trimmed text. Sites change their markup often; every extraction
// goes through an ordered candidate list.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// firstAttr is firstText for attribute values.
func firstAttr(s *goquery.Selection, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := s.Find(sel).First().Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

var nonPriceRe = regexp.MustCompile(`[^0-9.]`)

// parsePrice strips everything but digits and '.' from a price string.
// Returns nil for text with no usable amount.
func parsePrice(text string) *float64 {
	cleaned := nonPriceRe.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

var digitRunRe = regexp.MustCompile(`\d+`)

// parseBidCount takes the first run of digits in the text.
func parseBidCount(text string) int {
	m := digitRunRe.FindString(strings.ReplaceAll(text, ",", ""))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

var mileageRe = regexp.MustCompile(`(?i)\b([\d,]+(?:\.\d+)?)\s*(k)?[\s-]*(miles|mile|mi|kilometers|kilometres|km)\b`)

// parseMileage pulls an odometer reading out of free text. "17k Miles"
// expands to 17000; the unit is preserved for later normalization.
func parseMileage(text string) (*int, domain.MileageUnit) {
	m := mileageRe.FindStringSubmatch(text)
	if m == nil {
		return nil, ""
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil, ""
	}
	if m[2] != "" {
		v *= 1000
	}
	if v < 0 {
		return nil, ""
	}
	unit := domain.UnitMiles
	if strings.HasPrefix(strings.ToLower(m[3]), "k") {
		unit = domain.UnitKM
	}
	n := int(v)
	return &n, unit
}

var (
	speedRe        = regexp.MustCompile(`(?i)\b(\d+)[\s-]?speed\b`)
	gearboxRe      = regexp.MustCompile(`(?i)\b(manual|automatic|dual-clutch|sequential|cvt)\b`)
	odometerTalkRe = regexp.MustCompile(`(?i)\b(miles|mileage|odometer|km|kilometers|speedometer|shown)\b`)
)

// parseTransmission extracts a gearbox description from free text. A
// "...speed" match inside odometer wording ("17k Miles Shown on Replacement
// Speedometer") is a false positive and is discarded; explicit gearbox words
// like "Manual" stay valid next to mileage talk.
func parseTransmission(text string) string {
	speed := speedRe.FindStringSubmatch(text)
	if speed != nil && odometerTalkRe.MatchString(text) {
		speed = nil
	}
	gearbox := gearboxRe.FindString(text)
	if speed == nil && gearbox == "" {
		return ""
	}
	var parts []string
	if speed != nil {
		parts = append(parts, speed[1]+"-Speed")
	}
	if gearbox != "" {
		gearbox = strings.ToLower(gearbox)
		parts = append(parts, strings.ToUpper(gearbox[:1])+gearbox[1:])
	}
	return strings.Join(parts, " ")
}

// Makes spelled as two words, so title splitting keeps them whole.
var multiWordMakes = map[string]bool{
	"alfa romeo":    true,
	"aston martin":  true,
	"austin healey": true,
	"de tomaso":     true,
	"land rover":    true,
	"rolls royce":   true,
}

// parseTitle splits "1972 Datsun 240Z Series I" into year, make, model and
// trim. Missing pieces come back zero-valued.
func parseTitle(title string) (year int, mk, model, trim string) {
	fields := strings.Fields(title)
	i := 0
	if len(fields) > 0 {
		if y, err := strconv.Atoi(fields[0]); err == nil && y >= 1900 && y <= 2100 {
			year = y
			i = 1
		}
	}
	if i >= len(fields) {
		return year, "", "", ""
	}
	mk = fields[i]
	i++
	if i < len(fields) && multiWordMakes[strings.ToLower(mk+" "+fields[i])] {
		mk += " " + fields[i]
		i++
	}
	if i < len(fields) {
		model = fields[i]
		i++
	}
	trim = strings.Join(fields[i:], " ")
	return year, mk, model, trim
}

// attrCandidate is one (selector, attribute) pair tried when resolving an
// end time from explicit markup.
type attrCandidate struct {
	sel  string
	attr string
}

// resolveEndTime works down the resolution chain: explicit time-element
// attributes, then structured JSON-LD endDate, then a scan of visible text
// for a human-readable closing date.
func resolveEndTime(doc *goquery.Document, candidates ...attrCandidate) *time.Time {
	for _, c := range candidates {
		if v, ok := doc.Find(c.sel).First().Attr(c.attr); ok {
			if t := parseTimestamp(strings.TrimSpace(v)); t != nil {
				return t
			}
		}
	}
	if t := jsonLDEndDate(doc); t != nil {
		return t
	}
	return scanEndDateText(doc.Find("body").Text())
}

// jsonLDEndDate digs an endDate out of any ld+json block on the page.
func jsonLDEndDate(doc *goquery.Document) *time.Time {
	var found *time.Time
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true
		}
		if v := findJSONKey(payload, "endDate"); v != "" {
			if t := parseTimestamp(v); t != nil {
				found = t
				return false
			}
		}
		return true
	})
	return found
}

func findJSONKey(v any, key string) string {
	switch node := v.(type) {
	case map[string]any:
		if s, ok := node[key].(string); ok {
			return s
		}
		for _, child := range node {
			if s := findJSONKey(child, key); s != "" {
				return s
			}
		}
	case []any:
		for _, child := range node {
			if s := findJSONKey(child, key); s != "" {
				return s
			}
		}
	}
	return ""
}

var (
	endDateTextRe  = regexp.MustCompile(`(?i)\b(?:ended|ends|closed|closes)\s+(?:on\s+)?([A-Z][a-z]+ \d{1,2},? \d{4})`)
	soldDateTextRe = regexp.MustCompile(`(?i)\bon\s+([A-Z][a-z]+ \d{1,2},? \d{4})`)
)

// scanSoldDateText reads the date out of result blurbs like
// "Sold for $15,000 on June 5, 2025", pinned to UTC noon like end dates.
func scanSoldDateText(text string) *time.Time {
	m := soldDateTextRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	raw := strings.ReplaceAll(m[1], ",", "")
	t, err := time.Parse("January 2 2006", raw)
	if err != nil {
		return nil
	}
	noon := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
	return &noon
}

// scanEndDateText finds phrases like "ended on June 5, 2025". The date is
// pinned to UTC noon so a missing timezone cannot drift it across a day
// boundary.
func scanEndDateText(text string) *time.Time {
	m := endDateTextRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	raw := strings.ReplaceAll(m[1], ",", "")
	t, err := time.Parse("January 2 2006", raw)
	if err != nil {
		return nil
	}
	noon := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
	return &noon
}

// parseTimestamp accepts RFC3339, a plain date, or a unix epoch.
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil && epoch > 1_000_000_000 {
		t := time.Unix(epoch, 0).UTC()
		return &t
	}
	return nil
}

// absURL resolves href against the platform base.
func absURL(base, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}
