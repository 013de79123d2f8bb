package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// PdfToText extracts bulletin text with the poppler pdftotext CLI.
type PdfToText struct {
	binPath  string
	maxPages int
	timeout  time.Duration
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty,
// "pdftotext" is looked up on PATH. maxPages of 0 reads every page.
func NewPdfToText(binPath string, maxPages int, timeout time.Duration) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath, maxPages: maxPages, timeout: timeout}
}

func (p *PdfToText) args(pdfPath string) []string {
	args := []string{"-layout", "-enc", "UTF-8"}
	if p.maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(p.maxPages))
	}
	return append(args, pdfPath, "-")
}

// ExtractText returns the layout-preserving text of pdfPath. A bulletin
// scanned without a text layer yields an error rather than empty text.
func (p *PdfToText) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.binPath, p.args(pdfPath)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext %s: %s", pdfPath, strings.TrimSpace(stderr.String()))
	}

	text := stdout.String()
	if strings.TrimSpace(strings.ReplaceAll(text, "\f", "")) == "" {
		return "", eris.Errorf("ocr: %s has no text layer", pdfPath)
	}
	return text, nil
}
