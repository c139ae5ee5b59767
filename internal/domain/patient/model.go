package patient

import (
	"strings"
	"time"
	"unicode"
)

// Patient is the identity anchor for procedures, appointments and charts.
type Patient struct {
	ID              int64      `db:"id" json:"id"`
	FirstName       string     `db:"first_name" json:"first_name"`
	LastName        string     `db:"last_name" json:"last_name"`
	DocumentNumber  string     `db:"document_number" json:"document_number"`
	BirthDate       *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	Address         *string    `db:"address" json:"address,omitempty"`
	LocalityID      *int64     `db:"locality_id" json:"locality_id,omitempty"`
	InsurerID       *int64     `db:"insurer_id" json:"insurer_id,omitempty"`
	AffiliateNumber *string    `db:"affiliate_number" json:"affiliate_number,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// NormalizeDocument strips dots, dashes and spaces from a DNI and reports
// whether what is left is 7 or 8 digits.
func NormalizeDocument(dni string) (string, bool) {
	clean := stripChars(dni, ".- ")
	if len(clean) < 7 || len(clean) > 8 {
		return clean, false
	}
	return clean, allDigits(clean)
}

// NormalizePhone strips common separators and reports whether at least
// seven digits remain.
func NormalizePhone(phone string) (string, bool) {
	clean := stripChars(phone, " -()")
	return clean, len(clean) >= 7 && allDigits(clean)
}

func stripChars(s, chars string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
