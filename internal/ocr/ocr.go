// Package ocr extracts text from downloaded bulletin PDFs.
package ocr

import (
	"context"
	"time"

	"github.com/sells-group/bulletin-cli/internal/config"
)

// Extractor extracts text content from PDF files.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) Extractor {
	return NewPdfToText(cfg.PdfToTextPath, cfg.MaxPages, time.Duration(cfg.TimeoutSecs)*time.Second)
}
