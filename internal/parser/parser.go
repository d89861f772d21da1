package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimePDF  = "application/pdf"
)

// Supported reports whether documents of mimeType can be parsed at all.
func Supported(mimeType string) bool {
	switch mimeType {
	case MimeJPEG, MimePNG, MimePDF:
		return true
	}
	return false
}

var ErrNoText = errors.New("no text found in document")

// ParsedRecord is a best-effort transaction guess. Any field may be missing.
type ParsedRecord struct {
	Type       *models.TransactionType
	Amount     *decimal.Decimal
	Currency   *string
	OccurredAt *time.Time
	CategoryID *string
	Merchant   *string
	Notes      *string
}

type Parser interface {
	Parse(ctx context.Context, data []byte, mimeType string, kind models.ImportKind) ([]ParsedRecord, error)
}

// TextExtractor turns a PDF or image into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// RecordExtractor pulls structured records out of already extracted text.
type RecordExtractor interface {
	ExtractRecords(ctx context.Context, text string, kind models.ImportKind) ([]ParsedRecord, error)
}

// DocumentParser extracts text and then applies the receipt or statement rules.
// When an LLM extractor is configured it is tried first and the rules are the fallback.
type DocumentParser struct {
	extractor TextExtractor
	llm       RecordExtractor
	logger    *zap.Logger
}

func NewDocumentParser(extractor TextExtractor, llm RecordExtractor, logger *zap.Logger) *DocumentParser {
	return &DocumentParser{
		extractor: extractor,
		llm:       llm,
		logger:    logger,
	}
}

func (p *DocumentParser) Parse(ctx context.Context, data []byte, mimeType string, kind models.ImportKind) ([]ParsedRecord, error) {
	if !Supported(mimeType) {
		return nil, fmt.Errorf("unsupported mime type %q", mimeType)
	}

	text, err := p.extractor.ExtractText(ctx, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	text = sanitizeUTF8(strings.TrimSpace(text))
	if text == "" {
		// a blank receipt still becomes one empty draft for the user to fill in
		if kind == models.ImportKindSingleReceipt {
			return []ParsedRecord{}, nil
		}
		return nil, ErrNoText
	}

	if p.llm != nil {
		records, err := p.llm.ExtractRecords(ctx, text, kind)
		switch {
		case err != nil:
			p.logger.Warn("LLM extraction failed, falling back to rule-based parsing",
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		case len(records) == 0:
			p.logger.Info("LLM extraction returned no records, falling back to rule-based parsing",
				zap.String("kind", string(kind)),
			)
		default:
			return records, nil
		}
	}

	switch kind {
	case models.ImportKindSingleReceipt:
		return []ParsedRecord{ParseReceipt(text)}, nil
	case models.ImportKindStatementBatch:
		records := ParseStatement(text)
		p.logger.Debug("Statement parsed",
			zap.Int("text_length", len(text)),
			zap.Int("rows", len(records)),
		)
		return records, nil
	default:
		return nil, fmt.Errorf("unknown import kind %q", kind)
	}
}

func ptr[T any](v T) *T {
	return &v
}
