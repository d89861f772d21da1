package service

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"fintrack/internal/models"

	"github.com/shopspring/decimal"
)

const (
	maxMerchantLength   = 100
	maxNotesLength      = 1000
	maxCategoryIDLength = 64
)

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// maxAmount is the first value that no longer fits the NUMERIC(14,2) amount columns.
var maxAmount = decimal.New(1, 12)

// DraftPatch carries user edits to a draft. A nil field is left alone; a present
// empty string clears the field (type falls back to expense, currency to the default).
type DraftPatch struct {
	Type       *string
	Amount     *string
	Currency   *string
	OccurredAt *string
	CategoryID *string
	Merchant   *string
	Notes      *string
}

func (p DraftPatch) Empty() bool {
	return p.Type == nil && p.Amount == nil && p.Currency == nil && p.OccurredAt == nil &&
		p.CategoryID == nil && p.Merchant == nil && p.Notes == nil
}

// draftEdit is a fully validated patch; apply cannot fail.
type draftEdit []func(d *models.Draft)

func (e draftEdit) apply(d *models.Draft) {
	for _, set := range e {
		set(d)
	}
	d.Edited = true
}

// validate checks every field up front and reports all problems at once.
func (p DraftPatch) validate(defaultCurrency string) (draftEdit, error) {
	var (
		edit   draftEdit
		errs   []models.FieldError
		reject = func(field, msg string) {
			errs = append(errs, models.FieldError{Field: field, Message: msg})
		}
	)

	if p.Type != nil {
		t := models.TransactionType(strings.ToLower(strings.TrimSpace(*p.Type)))
		switch {
		case t == "":
			edit = append(edit, func(d *models.Draft) { d.Type = models.TransactionTypeExpense })
		case t.Valid():
			edit = append(edit, func(d *models.Draft) { d.Type = t })
		default:
			reject("type", "must be income or expense")
		}
	}

	if p.Amount != nil {
		raw := strings.TrimSpace(*p.Amount)
		if raw == "" {
			edit = append(edit, func(d *models.Draft) { d.Amount = nil })
		} else if amount, err := decimal.NewFromString(raw); err != nil {
			reject("amount", "must be a decimal number")
		} else if amount.IsNegative() {
			reject("amount", "must not be negative")
		} else if !amount.Equal(amount.Round(2)) {
			reject("amount", "must have at most two decimal places")
		} else if amount.GreaterThanOrEqual(maxAmount) {
			reject("amount", "is too large")
		} else {
			edit = append(edit, func(d *models.Draft) { v := amount; d.Amount = &v })
		}
	}

	if p.Currency != nil {
		code := strings.ToUpper(strings.TrimSpace(*p.Currency))
		if code == "" {
			code = defaultCurrency
		}
		if currencyCodePattern.MatchString(code) {
			edit = append(edit, func(d *models.Draft) { d.Currency = code })
		} else {
			reject("currency", "must be a three-letter currency code")
		}
	}

	if p.OccurredAt != nil {
		raw := strings.TrimSpace(*p.OccurredAt)
		if raw == "" {
			edit = append(edit, func(d *models.Draft) { d.OccurredAt = nil })
		} else if t, ok := parseTimestamp(raw); ok {
			edit = append(edit, func(d *models.Draft) { v := t; d.OccurredAt = &v })
		} else {
			reject("occurred_at", "must be RFC 3339 or YYYY-MM-DD")
		}
	}

	if p.CategoryID != nil {
		if v, ok := optionalText(*p.CategoryID, maxCategoryIDLength); ok {
			edit = append(edit, func(d *models.Draft) { d.CategoryID = v })
		} else {
			reject("category_id", "is too long")
		}
	}

	if p.Merchant != nil {
		if v, ok := optionalText(*p.Merchant, maxMerchantLength); ok {
			edit = append(edit, func(d *models.Draft) { d.Merchant = v })
		} else {
			reject("merchant", "is too long")
		}
	}

	if p.Notes != nil {
		if v, ok := optionalText(*p.Notes, maxNotesLength); ok {
			edit = append(edit, func(d *models.Draft) { d.Notes = v })
		} else {
			reject("notes", "is too long")
		}
	}

	if len(errs) > 0 {
		return nil, &models.ValidationError{Errors: errs}
	}
	return edit, nil
}

// replacement builds the draft a full replace produces: anything the patch leaves
// out is cleared.
func (p DraftPatch) replacement(defaultCurrency string) (models.Draft, error) {
	edit, err := p.validate(defaultCurrency)
	if err != nil {
		return models.Draft{}, err
	}
	d := models.Draft{
		Type:     models.TransactionTypeExpense,
		Currency: defaultCurrency,
	}
	edit.apply(&d)
	return d, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// optionalText trims s; an empty result clears the field.
func optionalText(s string, maxLen int) (*string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	if utf8.RuneCountInString(s) > maxLen {
		return nil, false
	}
	return &s, true
}
