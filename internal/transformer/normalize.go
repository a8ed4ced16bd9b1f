// Package transformer turns decoded source tables into canonical, typed Arrow
// batches. It hosts the per-value policies (header names, text, numbers,
// dates, satisfaction codes) and the per-file column plan that applies them.
package transformer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"ouvidoria/internal/schema"
)

// ColumnName converts a source header into a snake_case identifier:
//  1. strip accents (NFD → remove Mn → NFC)
//  2. lowercase
//  3. every run of characters outside [a-z0-9_] becomes a single '_'
//  4. trim leading/trailing '_'
//
// The result is a fixed point: ColumnName(ColumnName(s)) == ColumnName(s).
func ColumnName(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, err := transform.String(t, s)
	if err != nil {
		ascii = s
	}
	ascii = strings.ToLower(ascii)

	var b strings.Builder
	b.Grow(len(ascii))
	inRun := false
	for _, r := range ascii {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// nullTokens are the lower-cased literals extracts use for a missing cell.
// They follow the null markers of the pandas CSV reader.
var nullTokens = map[string]bool{
	"":         true,
	"nan":      true,
	"-nan":     true,
	"na":       true,
	"n/a":      true,
	"#n/a":     true,
	"#n/a n/a": true,
	"#na":      true,
	"<na>":     true,
	"null":     true,
	"none":     true,
	"1.#ind":   true,
	"-1.#ind":  true,
	"1.#qnan":  true,
	"-1.#qnan": true,
}

// Text applies the categorical policy: lowercase and trim; absent, empty or
// null-marker cells ("nan", "NA", "NULL", ...) become schema.Sentinel.
func Text(s string, present bool) string {
	if !present {
		return schema.Sentinel
	}
	s = strings.TrimSpace(strings.ToLower(s))
	if nullTokens[s] {
		return schema.Sentinel
	}
	return s
}

// Number parses s as a float. Anything unparseable, NaN or infinite becomes 0.
func Number(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// dateLayouts are tried in order after the fast path. Day-first layouts come
// before ISO so that ambiguous inputs resolve as dd/mm.
var dateLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2.1.2006",
	"2.1.2006 15:04:05",
	"2-1-2006",
	"2-1-2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339,
}

// Date parses s with a day-first convention. It returns ok=false for empty or
// unparseable input.
func Date(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := parseDMY(s, '/'); ok {
		return t, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDMY is a zero-allocation parser for "dd/mm/yyyy" with separator sep.
func parseDMY(s string, sep byte) (time.Time, bool) {
	if len(s) != 10 || s[2] != sep || s[5] != sep {
		return time.Time{}, false
	}
	d1, d0 := s[0]-'0', s[1]-'0'
	m1, m0 := s[3]-'0', s[4]-'0'
	y3, y2, y1, y0 := s[6]-'0', s[7]-'0', s[8]-'0', s[9]-'0'
	if d1 > 9 || d0 > 9 || m1 > 9 || m0 > 9 || y3 > 9 || y2 > 9 || y1 > 9 || y0 > 9 {
		return time.Time{}, false
	}
	day := int(d1)*10 + int(d0)
	mon := int(m1)*10 + int(m0)
	year := int(y3)*1000 + int(y2)*100 + int(y1)*10 + int(y0)
	if mon < 1 || mon > 12 || day < 1 || day > daysIn(time.Month(mon), year) {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(mon), day, 0, 0, 0, 0, time.UTC), true
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var satisfactionRe = regexp.MustCompile(`\((\d)\)`)

// SatisfactionCode extracts the 1..5 rating embedded in labels such as
// "(1) muito insatisfeito".
func SatisfactionCode(label string) (int, bool) {
	m := satisfactionRe.FindStringSubmatch(label)
	if m == nil {
		return 0, false
	}
	code := int(m[1][0] - '0')
	if code < 1 || code > 5 {
		return 0, false
	}
	return code, true
}
