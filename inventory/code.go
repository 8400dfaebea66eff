package inventory

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const (
	codePrefixLen = 3
	codeDigits    = 3
)

// CodePrefix derives the 3-character prefix from a brand: letters and
// digits only, uppercased, truncated, padded with X.
func CodePrefix(brand string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(brand) {
		if b.Len() == codePrefixLen {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	for b.Len() < codePrefixLen {
		b.WriteByte('X')
	}
	return b.String()
}

// NextCode returns prefix + (highest numeric suffix among codes sharing the
// prefix + 1), zero-padded. The result depends only on the existing set.
func NextCode(brand string, existing []Item) string {
	prefix := CodePrefix(brand)
	highest := 0
	for _, it := range existing {
		code := strings.ToUpper(it.Code)
		if !strings.HasPrefix(code, prefix) {
			continue
		}
		n, err := strconv.Atoi(code[len(prefix):])
		if err != nil || n < 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, codeDigits, highest+1)
}
