package scrape

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNumber keeps only digits and minus signs of text and parses the rest as
// a base-10 integer. Text with no digits is zero.
func ParseNumber(text string) (int64, error) {
	var cleaned strings.Builder
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			cleaned.WriteRune(r)
		case r == '-' || r == '−' || r == '－':
			cleaned.WriteByte('-')
		}
	}
	digits := cleaned.String()
	if digits == "" || digits == "-" {
		return 0, nil
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", text, err)
	}
	return n, nil
}
