package procedure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nzlopez07/Florens/internal/platform/db"
)

type procedureRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &procedureRepoPG{q: q} }

const procedureCols = `id, patient_id, practice_id, description, code, amount, performed_at, notes, created_at`

func scanProcedure(row pgx.Row) (*Procedure, error) {
	var p Procedure
	err := row.Scan(&p.ID, &p.PatientID, &p.PracticeID, &p.Description, &p.Code, &p.Amount,
		&p.PerformedAt, &p.Notes, &p.CreatedAt)
	return &p, err
}

func (r *procedureRepoPG) Create(ctx context.Context, p *Procedure) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO procedures (patient_id, practice_id, description, code, amount, performed_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		p.PatientID, p.PracticeID, p.Description, p.Code, p.Amount, p.PerformedAt, p.Notes,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *procedureRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Procedure, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM procedures WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count procedures: %w", err)
	}

	rows, err := r.q.Query(ctx, `SELECT `+procedureCols+` FROM procedures
		WHERE patient_id = $1
		ORDER BY performed_at DESC, id DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list procedures: %w", err)
	}
	defer rows.Close()

	var items []*Procedure
	for rows.Next() {
		p, err := scanProcedure(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *procedureRepoPG) LatestPerformedAt(ctx context.Context, patientID int64) (*time.Time, error) {
	var latest *time.Time
	err := r.q.QueryRow(ctx, `SELECT MAX(performed_at) FROM procedures WHERE patient_id = $1`, patientID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("latest procedure: %w", err)
	}
	return latest, nil
}
