package insurer

import "time"

// Insurer is a health insurance provider ("obra social"). Practices billed
// to an insurer reference it, and so may patients.
type Insurer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      *string   `db:"code" json:"code,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
