// Package extract pulls text out of PDFs (MuPDF through go-fitz) and images (Tesseract).
// Both libraries need cgo and their native counterparts installed.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

const (
	mimePDF  = "application/pdf"
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"

	// Render resolution for OCR of scanned PDF pages.
	scanDPI = 200
)

type Extractor struct {
	languages []string
	logger    *zap.Logger
}

func New(languages []string, logger *zap.Logger) *Extractor {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Extractor{
		languages: languages,
		logger:    logger,
	}
}

func (e *Extractor) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	var (
		text   string
		err    error
		method string
	)

	switch mimeType {
	case mimePDF:
		text, method, err = e.fromPDF(ctx, data)
	case mimeJPEG, mimePNG:
		method = "tesseract"
		text, err = e.ocr(data)
	default:
		return "", fmt.Errorf("unsupported file format: %s", mimeType)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	e.logger.Info("Text extraction completed",
		zap.String("mime_type", mimeType),
		zap.String("method", method),
		zap.Int("text_length", len(text)),
	)
	return text, nil
}

// fromPDF reads the embedded text layer and falls back to OCR of rendered pages
// when the document is a scan.
func (e *Extractor) fromPDF(ctx context.Context, data []byte) (string, string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			e.logger.Warn("Failed to extract text from page", zap.Int("page", i+1), zap.Error(err))
			continue
		}
		if pageText != "" {
			sb.WriteString(pageText)
			sb.WriteString("\n")
		}
	}
	if strings.TrimSpace(sb.String()) != "" {
		return sb.String(), "go-fitz", nil
	}

	e.logger.Info("PDF has no text layer, running OCR", zap.Int("pages", doc.NumPage()))
	sb.Reset()
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		png, err := doc.ImagePNG(i, scanDPI)
		if err != nil {
			e.logger.Warn("Failed to render page", zap.Int("page", i+1), zap.Error(err))
			continue
		}
		pageText, err := e.ocr(png)
		if err != nil {
			return "", "", err
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), "go-fitz+tesseract", nil
}

func (e *Extractor) ocr(image []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("failed to set OCR languages: %w", err)
	}
	// single column of variable-size text, as printed on POS receipts
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_COLUMN); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}
