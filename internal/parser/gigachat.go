package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"fintrack/internal/models"
	"fintrack/pkg/config"

	"github.com/Role1776/gigago"
	"go.uber.org/zap"
)

const systemInstruction = `You extract financial transactions from text recognised in receipts and bank statements.
Always answer with a JSON array only, without markdown and without comments.`

const minTextLength = 10

// GigaChatExtractor asks a GigaChat model to structure receipt or statement text.
type GigaChatExtractor struct {
	client   *gigago.Client
	generate func(ctx context.Context, prompt string) (string, error)
	logger   *zap.Logger
}

func NewGigaChatExtractor(ctx context.Context, cfg *config.GigaChatConfig, logger *zap.Logger) (*GigaChatExtractor, error) {
	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.Scope),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = systemInstruction
	model.Temperature = 0.1

	generate := func(ctx context.Context, prompt string) (string, error) {
		resp, err := model.Generate(ctx, []gigago.Message{
			{Role: gigago.RoleUser, Content: prompt},
		})
		if err != nil {
			return "", fmt.Errorf("failed to generate response: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no response from LLM")
		}
		return resp.Choices[0].Message.Content, nil
	}

	logger.Info("GigaChat extraction enabled", zap.String("model", cfg.Model))

	return &GigaChatExtractor{
		client:   client,
		generate: generate,
		logger:   logger,
	}, nil
}

type llmRecord struct {
	Type     string          `json:"type"`
	Amount   json.RawMessage `json:"amount"`
	Currency string          `json:"currency"`
	Date     string          `json:"date"`
	Merchant string          `json:"merchant"`
}

func (e *GigaChatExtractor) ExtractRecords(ctx context.Context, text string, kind models.ImportKind) ([]ParsedRecord, error) {
	text = strings.TrimSpace(text)
	if len(text) < minTextLength {
		return nil, nil
	}

	scope := "every transaction row of this bank or card statement"
	notes := statementNotes
	if kind == models.ImportKindSingleReceipt {
		scope = "the single purchase on this receipt (use the grand total)"
		notes = receiptNotes
	}

	prompt := fmt.Sprintf(`Extract %s.

Document text:
%s

Return a JSON array in this format:
[
  {
    "type": "expense|income",
    "amount": positive number,
    "currency": "three-letter ISO code or empty",
    "date": "YYYY-MM-DD or empty",
    "merchant": "payee or shop name"
  }
]
If the text contains no transactions return [].`, scope, text)

	content, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	records, err := decodeLLMRecords(content, notes)
	if err != nil {
		return nil, err
	}

	e.logger.Info("LLM extraction completed",
		zap.String("kind", string(kind)),
		zap.Int("count", len(records)),
	)
	return records, nil
}

func (e *GigaChatExtractor) Close() error {
	if e.client != nil {
		e.client.Close()
	}
	return nil
}

// decodeLLMRecords finds the JSON array in a model answer, tolerating markdown
// fences and chatter around it.
func decodeLLMRecords(content, notes string) ([]ParsedRecord, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("invalid response format: %s", content)
	}

	var raw []llmRecord
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	records := make([]ParsedRecord, 0, len(raw))
	for _, r := range raw {
		record := ParsedRecord{Notes: ptr(notes)}

		if t := models.TransactionType(strings.ToLower(strings.TrimSpace(r.Type))); t.Valid() {
			record.Type = ptr(t)
		}
		if amount, ok := ParseAmount(strings.Trim(string(r.Amount), `"`)); ok {
			if amount.IsNegative() {
				record.Type = ptr(models.TransactionTypeIncome)
				amount = amount.Abs()
			}
			record.Amount = &amount
		}
		if c := strings.ToUpper(strings.TrimSpace(r.Currency)); len(c) == 3 {
			record.Currency = ptr(c)
		}
		if t, ok := ParseDate(r.Date); ok {
			record.OccurredAt = &t
		}
		if m := strings.TrimSpace(r.Merchant); m != "" {
			record.Merchant = ptr(truncateRunes(m, merchantMaxRunes))
		}

		records = append(records, record)
	}
	return records, nil
}
