package parser

import (
	"regexp"
	"strings"

	"fintrack/internal/models"

	"github.com/shopspring/decimal"
)

const (
	statementNotes     = "Imported from PDF"
	merchantMaxRunes   = 100
	defaultDescription = "Imported"
)

var (
	rowDatePattern = regexp.MustCompile(
		`^(\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}|\d{1,2}[- ][A-Za-z]{3}[- ]\d{2,4})\s+(.*)$`,
	)
	// An attached CR/DR suffix, as in "1,200.00CR".
	markerSuffix = regexp.MustCompile(`(?i)^(.*?[0-9)])(cr|dr)$`)
)

type statementLayout struct {
	hasBalance bool
}

// ParseStatement turns statement text into one record per transaction row.
// A row starts with a date and carries at least one money amount; everything else
// (headers, page footers, running totals) is ignored. Rows are returned in document order.
func ParseStatement(text string) []ParsedRecord {
	currency, hasCurrency := DetectCurrency(text)
	var layout statementLayout

	var records []ParsedRecord
	for _, line := range nonEmptyLines(text) {
		if isHeaderLine(line) {
			layout.hasBalance = strings.Contains(strings.ToLower(line), "balance")
			continue
		}

		record, ok := parseStatementRow(line, layout)
		if !ok {
			continue
		}
		if hasCurrency {
			record.Currency = ptr(currency)
		}
		records = append(records, record)
	}
	return records
}

func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	if rowDatePattern.MatchString(line) || !strings.Contains(lower, "date") {
		return false
	}
	for _, key := range []string{"amount", "debit", "credit", "withdrawal", "deposit"} {
		if strings.Contains(lower, key) {
			return true
		}
	}
	return false
}

type amountToken struct {
	index  int
	value  decimal.Decimal
	marker string
}

func parseStatementRow(line string, layout statementLayout) (ParsedRecord, bool) {
	m := rowDatePattern.FindStringSubmatch(line)
	if m == nil {
		return ParsedRecord{}, false
	}
	occurredAt, ok := ParseDate(m[1])
	if !ok {
		return ParsedRecord{}, false
	}

	fields := strings.Fields(m[2])
	var amounts []amountToken
	for i := 0; i < len(fields); i++ {
		token := fields[i]
		marker := ""
		if sm := markerSuffix.FindStringSubmatch(token); sm != nil {
			token, marker = sm[1], strings.ToUpper(sm[2])
		} else if i+1 < len(fields) {
			if next := strings.ToUpper(fields[i+1]); next == "CR" || next == "DR" {
				marker = next
			}
		}

		value, ok := ParseAmount(token)
		if !ok || !looksLikeMoney(token, i == len(fields)-1) {
			continue
		}
		amounts = append(amounts, amountToken{index: i, value: value, marker: marker})
	}
	if len(amounts) == 0 {
		return ParsedRecord{}, false
	}

	// With a balance column the last figure on the row is the running balance.
	picked := amounts[0]
	if layout.hasBalance && len(amounts) >= 2 {
		picked = amounts[len(amounts)-2]
	}

	description := strings.Join(fields[:amounts[0].index], " ")
	if description == "" {
		description = defaultDescription
	}

	txType := models.TransactionTypeExpense
	amount := picked.value
	if amount.IsNegative() || picked.marker == "CR" {
		txType = models.TransactionTypeIncome
	}
	amount = amount.Abs()

	return ParsedRecord{
		Type:       ptr(txType),
		Amount:     &amount,
		OccurredAt: &occurredAt,
		Merchant:   ptr(truncateRunes(description, merchantMaxRunes)),
		Notes:      ptr(statementNotes),
	}, true
}

// looksLikeMoney keeps reference numbers inside descriptions from being read as
// amounts: a bare integer only counts when it is the last token on the row.
func looksLikeMoney(token string, last bool) bool {
	if strings.ContainsAny(token, ".,₹$€£(") {
		return true
	}
	return last
}
