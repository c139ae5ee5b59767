package practice

import "time"

// Provider types. A practice billed to an insurer carries its InsurerID;
// a private one never does.
const (
	ProviderInsurer = "OBRA_SOCIAL"
	ProviderPrivate = "PARTICULAR"
)

// Practice is a billable catalog entry. Procedures can reference one to
// inherit its code and amount.
type Practice struct {
	ID           int64     `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Description  string    `db:"description" json:"description"`
	Amount       float64   `db:"amount" json:"amount"`
	ProviderType string    `db:"provider_type" json:"provider_type"`
	InsurerID    *int64    `db:"insurer_id" json:"insurer_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Filter selects practices for a listing. With InsurerID set only that
// insurer's practices match; otherwise only private ones, unless All.
type Filter struct {
	Term      string
	InsurerID *int64
	All       bool
}
