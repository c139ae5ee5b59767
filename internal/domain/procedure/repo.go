package procedure

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, p *Procedure) error
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Procedure, int, error)
	// LatestPerformedAt returns nil when the patient has no procedures.
	LatestPerformedAt(ctx context.Context, patientID int64) (*time.Time, error)
}
