package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/nzlopez07/Florens/internal/platform/db"
)

type patientRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &patientRepoPG{q: q} }

const patientCols = `id, first_name, last_name, document_number, birth_date, phone, address,
	locality_id, insurer_id, affiliate_number, created_at, updated_at`

var patientColList = []interface{}{"id", "first_name", "last_name", "document_number", "birth_date", "phone", "address",
	"locality_id", "insurer_id", "affiliate_number", "created_at", "updated_at"}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DocumentNumber, &p.BirthDate,
		&p.Phone, &p.Address, &p.LocalityID, &p.InsurerID, &p.AffiliateNumber, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO patients (first_name, last_name, document_number, birth_date, phone, address,
			locality_id, insurer_id, affiliate_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		p.FirstName, p.LastName, p.DocumentNumber, p.BirthDate, p.Phone, p.Address,
		p.LocalityID, p.InsurerID, p.AffiliateNumber,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	return scanPatient(r.q.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	return r.q.QueryRow(ctx, `
		UPDATE patients SET first_name=$2, last_name=$3, document_number=$4, birth_date=$5,
			phone=$6, address=$7, locality_id=$8, insurer_id=$9, affiliate_number=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FirstName, p.LastName, p.DocumentNumber, p.BirthDate, p.Phone, p.Address,
		p.LocalityID, p.InsurerID, p.AffiliateNumber,
	).Scan(&p.UpdatedAt)
}

func (r *patientRepoPG) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func searchFilter(term string) goqu.Expression {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	pattern := "%" + term + "%"
	return goqu.Or(
		goqu.C("first_name").ILike(pattern),
		goqu.C("last_name").ILike(pattern),
		goqu.C("document_number").ILike(pattern),
		goqu.L("first_name || ' ' || last_name").ILike(pattern),
	)
}

func (r *patientRepoPG) Search(ctx context.Context, term string, limit, offset int) ([]*Patient, int, error) {
	base := db.PG.From("patients").Prepared(true)
	if f := searchFilter(term); f != nil {
		base = base.Where(f)
	}

	countSQL, countArgs, err := base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build patient count: %w", err)
	}
	var total int
	if err := r.q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL, listArgs, err := base.Select(patientColList...).
		Order(goqu.C("last_name").Asc(), goqu.C("first_name").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build patient search: %w", err)
	}

	rows, err := r.q.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
