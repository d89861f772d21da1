package parser

import (
	"regexp"
	"strings"

	"fintrack/internal/models"
)

const receiptNotes = "Imported from receipt"

var (
	// Checked in order; the first hit is the receipt total.
	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`grand\s*total\s*[:\-]?\s*(?:₹|rs\.?|inr)?\s*([0-9]+(?:\.[0-9]{1,2})?)`),
		regexp.MustCompile(`\b(?:net\s*)?total\s*(?:amount)?\s*[:\-]?\s*(?:₹|rs\.?|inr)?\s*([0-9]+(?:\.[0-9]{1,2})?)`),
		regexp.MustCompile(`\bamount\s*(?:paid|due)?\s*[:\-]?\s*(?:₹|rs\.?|inr)?\s*([0-9]+(?:\.[0-9]{1,2})?)`),
	}
	fallbackAmountPattern = regexp.MustCompile(`(?:₹|rs\.?|inr)?\s*([0-9]+\.[0-9]{2})\b`)

	receiptDatePattern = regexp.MustCompile(
		`(\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}|\d{1,2}[- ][A-Za-z]{3,9}[- ]\d{2,4})`,
	)
	merchantPattern = regexp.MustCompile(`[A-Za-z]{3,}`)
)

const (
	merchantSearchLines = 8
	merchantMaxLength   = 40
)

// ParseReceipt guesses the total, date and merchant of a single receipt.
// It always returns a record; fields it cannot find are left nil.
func ParseReceipt(text string) ParsedRecord {
	record := ParsedRecord{
		Type:  ptr(models.TransactionTypeExpense),
		Notes: ptr(receiptNotes),
	}

	lines := nonEmptyLines(text)
	for i, l := range lines {
		if i >= merchantSearchLines {
			break
		}
		if merchantPattern.MatchString(l) && len([]rune(l)) <= merchantMaxLength {
			record.Merchant = ptr(l)
			break
		}
	}

	lowText := strings.ReplaceAll(strings.ToLower(text), ",", "")
	for _, pattern := range totalPatterns {
		if m := pattern.FindStringSubmatch(lowText); m != nil {
			if amount, ok := ParseAmount(m[1]); ok {
				record.Amount = &amount
				break
			}
		}
	}
	if record.Amount == nil {
		if all := fallbackAmountPattern.FindAllStringSubmatch(lowText, -1); len(all) > 0 {
			if amount, ok := ParseAmount(all[len(all)-1][1]); ok {
				record.Amount = &amount
			}
		}
	}

	for _, candidate := range receiptDatePattern.FindAllString(text, -1) {
		if t, ok := ParseDate(candidate); ok {
			record.OccurredAt = &t
			break
		}
	}

	if code, ok := DetectCurrency(text); ok {
		record.Currency = ptr(code)
	}

	return record
}
