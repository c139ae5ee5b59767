package practice

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/nzlopez07/Florens/internal/platform/db"
)

type practiceRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &practiceRepoPG{q: q} }

const practiceCols = `id, code, description, amount, provider_type, insurer_id, created_at, updated_at`

var practiceColList = []interface{}{"id", "code", "description", "amount", "provider_type", "insurer_id", "created_at", "updated_at"}

func scanPractice(row pgx.Row) (*Practice, error) {
	var p Practice
	err := row.Scan(&p.ID, &p.Code, &p.Description, &p.Amount, &p.ProviderType,
		&p.InsurerID, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *practiceRepoPG) Create(ctx context.Context, p *Practice) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO practices (code, description, amount, provider_type, insurer_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		p.Code, p.Description, p.Amount, p.ProviderType, p.InsurerID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *practiceRepoPG) GetByID(ctx context.Context, id int64) (*Practice, error) {
	return scanPractice(r.q.QueryRow(ctx, `SELECT `+practiceCols+` FROM practices WHERE id = $1`, id))
}

func (r *practiceRepoPG) GetByCode(ctx context.Context, code string) (*Practice, error) {
	return scanPractice(r.q.QueryRow(ctx, `SELECT `+practiceCols+` FROM practices WHERE code = $1`, code))
}

func (r *practiceRepoPG) Update(ctx context.Context, p *Practice) error {
	return r.q.QueryRow(ctx, `
		UPDATE practices SET code=$2, description=$3, amount=$4, provider_type=$5,
			insurer_id=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.Code, p.Description, p.Amount, p.ProviderType, p.InsurerID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *practiceRepoPG) Delete(ctx context.Context, id int64) error {
	var deleted int64
	return r.q.QueryRow(ctx, `DELETE FROM practices WHERE id = $1 RETURNING id`, id).Scan(&deleted)
}

func listFilter(f Filter) []goqu.Expression {
	var where []goqu.Expression
	if term := strings.TrimSpace(f.Term); term != "" {
		pattern := "%" + term + "%"
		where = append(where, goqu.Or(
			goqu.C("description").ILike(pattern),
			goqu.C("code").ILike(pattern),
		))
	}
	switch {
	case f.InsurerID != nil:
		where = append(where,
			goqu.C("provider_type").Eq(ProviderInsurer),
			goqu.C("insurer_id").Eq(*f.InsurerID))
	case !f.All:
		where = append(where, goqu.C("provider_type").Eq(ProviderPrivate))
	}
	return where
}

func (r *practiceRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Practice, int, error) {
	base := db.PG.From("practices").Prepared(true).Where(listFilter(f)...)

	countSQL, countArgs, err := base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build practice count: %w", err)
	}
	var total int
	if err := r.q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL, listArgs, err := base.Select(practiceColList...).
		Order(goqu.C("description").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build practice list: %w", err)
	}
	rows, err := r.q.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Practice
	for rows.Next() {
		p, err := scanPractice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
