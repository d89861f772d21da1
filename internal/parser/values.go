package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Day-first layouts win over month-first ones for ambiguous dates such as 03/04/2025.
var dateLayouts = []string{
	"2006-1-2",
	"2-1-2006",
	"2-Jan-2006",
	"2-January-2006",
	"Jan-2-2006",
	"1-2-2006",
	"2-1-06",
	"2-Jan-06",
}

var (
	dateSeparators = strings.NewReplacer("/", "-", ".", "-", " ", "-", ",", "")
	multiDash      = regexp.MustCompile(`-{2,}`)
)

// ParseDate accepts the date notations commonly printed on Indian and international
// receipts and statements: 2025-08-31, 31/08/2025, 31-08-2025, 31 Aug 2025, Aug 31, 2025.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}

	normalized := multiDash.ReplaceAllString(dateSeparators.Replace(s), "-")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var currencyNoise = strings.NewReplacer(
	",", "",
	"₹", "",
	"$", "",
	"€", "",
	"£", "",
	" ", "",
)

var amountTokenPattern = regexp.MustCompile(`^-?[0-9]+(?:\.[0-9]{1,2})?$`)

// ParseAmount parses a printed money value. Thousands separators and currency
// symbols are ignored; a leading minus or surrounding parentheses make it negative.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"rs.", "rs", "inr"} {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			break
		}
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = currencyNoise.Replace(s)
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	}

	if !amountTokenPattern.MatchString(s) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

var currencyMarkers = []struct {
	pattern *regexp.Regexp
	code    string
}{
	{regexp.MustCompile(`₹|\b(?:inr|rs\.?)\s*[0-9]`), "INR"},
	{regexp.MustCompile(`\$|\busd\b`), "USD"},
	{regexp.MustCompile(`€|\beur\b`), "EUR"},
	{regexp.MustCompile(`£|\bgbp\b`), "GBP"},
	{regexp.MustCompile(`₽|\brub\b`), "RUB"},
	{regexp.MustCompile(`\binr\b`), "INR"},
}

// DetectCurrency returns the first currency the text mentions, if any.
func DetectCurrency(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, m := range currencyMarkers {
		if m.pattern.MatchString(lower) {
			return m.code, true
		}
	}
	return "", false
}
