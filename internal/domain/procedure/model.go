package procedure

import "time"

// Procedure is a clinical act ("prestación") performed on a patient. Its
// PerformedAt drives odontogram staleness.
type Procedure struct {
	ID          int64     `db:"id" json:"id"`
	PatientID   int64     `db:"patient_id" json:"patient_id"`
	PracticeID  *int64    `db:"practice_id" json:"practice_id,omitempty"`
	Description string    `db:"description" json:"description"`
	Code        *string   `db:"code" json:"code,omitempty"`
	Amount      float64   `db:"amount" json:"amount"`
	PerformedAt time.Time `db:"performed_at" json:"performed_at"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
