package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/local/quizforge/api/models"
)

// PageText is the extracted text of one PDF page, in reading order.
type PageText struct {
	Page int
	Text string
}

// IngestPDF extracts the text of an uploaded PDF and splits it into
// overlapping segments of at most segSize runes. Segment IDs are sequential
// across pages, so reading order and retrieval-priority order coincide.
// A document that is not a PDF, or that contains no extractable text,
// yields models.ErrInvalidDocument rather than an empty slice.
func IngestPDF(data []byte, segSize, overlap int) ([]models.Segment, error) {
	pages, err := extractPages(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidDocument, err)
	}

	var segments []models.Segment
	for _, page := range pages {
		for _, text := range splitText(page.Text, segSize, overlap) {
			segments = append(segments, models.Segment{
				ID:   len(segments),
				Page: page.Page,
				Text: text,
			})
		}
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: document contains no extractable text", models.ErrInvalidDocument)
	}
	return segments, nil
}

// extractPages reads per-page plain text from raw PDF bytes.
func extractPages(data []byte) ([]PageText, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var pages []PageText
	totalPage := reader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		p := reader.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			// Continue even if one page fails
			continue
		}

		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, PageText{Page: pageIndex, Text: text})
	}

	return pages, nil
}

// splitText splits text into overlapping rune-bounded chunks, preserving
// order. Whitespace-only chunks are dropped.
func splitText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	runes := []rune(strings.TrimSpace(text))
	start := 0

	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if len(chunk) > 0 {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
		// Move forward, but overlap
		start += size - overlap
	}

	return chunks
}
