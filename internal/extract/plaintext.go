package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// PlainText extracts text-bearing formats that are already plain bytes
// (text/plain, text/rtf after a light strip, etc.).
type PlainText struct{}

func NewPlainText() *PlainText {
	return &PlainText{}
}

// Extract validates the bytes are UTF-8 text and returns them trimmed.
func (p *PlainText) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty document")
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("document is not valid UTF-8 text")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("document contains no text")
	}
	return text, nil
}
