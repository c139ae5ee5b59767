package locality

import (
	"strings"
	"time"
	"unicode"
)

// Locality is a town patients can live in. Names are unique ignoring case.
type Locality struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NormalizeName collapses inner whitespace and title-cases every word, so
// "  villa   MARÍA " becomes "Villa María".
func NormalizeName(name string) string {
	var b strings.Builder
	prevLetter := false
	for i, word := range strings.Fields(name) {
		if i > 0 {
			b.WriteByte(' ')
			prevLetter = false
		}
		for _, r := range word {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = unicode.IsLetter(r)
		}
	}
	return b.String()
}
