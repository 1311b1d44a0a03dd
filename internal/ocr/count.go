package ocr

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoCount is returned when no number can be read from the text.
var ErrNoCount = errors.New("no count found in text")

var (
	labelCount = regexp.MustCompile(`(?i)total\s*deteksi\s*[:;.,]?\s*([0-9OoIl|]+)`)
	anyNumber  = regexp.MustCompile(`\d+`)

	// Glyphs Tesseract commonly swaps for digits inside a number.
	digitFixes = strings.NewReplacer("O", "0", "o", "0", "I", "1", "l", "1", "|", "1")
)

// ParseCount reads the detection total from OCR text such as
// "Total Deteksi: 12 kelapa sawit". Without the label prefix it falls back to
// the first integer in the text.
func ParseCount(text string) (int, error) {
	if m := labelCount.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(digitFixes.Replace(m[1])); err == nil {
			return n, nil
		}
	}
	if m := anyNumber.FindString(text); m != "" {
		return strconv.Atoi(m)
	}
	return 0, ErrNoCount
}
