package insurer

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/nzlopez07/Florens/internal/platform/db"
)

type insurerRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &insurerRepoPG{q: q} }

var insurerColList = []interface{}{"id", "name", "code", "created_at"}

func scanInsurer(row pgx.Row) (*Insurer, error) {
	var i Insurer
	err := row.Scan(&i.ID, &i.Name, &i.Code, &i.CreatedAt)
	return &i, err
}

func (r *insurerRepoPG) Create(ctx context.Context, i *Insurer) error {
	return r.q.QueryRow(ctx, `INSERT INTO insurers (name, code) VALUES ($1, $2) RETURNING id, created_at`,
		i.Name, i.Code).Scan(&i.ID, &i.CreatedAt)
}

func (r *insurerRepoPG) GetByID(ctx context.Context, id int64) (*Insurer, error) {
	return scanInsurer(r.q.QueryRow(ctx, `SELECT id, name, code, created_at FROM insurers WHERE id = $1`, id))
}

func (r *insurerRepoPG) Search(ctx context.Context, term string, limit, offset int) ([]*Insurer, int, error) {
	base := db.PG.From("insurers").Prepared(true)
	if term = strings.TrimSpace(term); term != "" {
		base = base.Where(goqu.C("name").ILike("%" + term + "%"))
	}

	countSQL, countArgs, err := base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build insurer count: %w", err)
	}
	var total int
	if err := r.q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL, listArgs, err := base.Select(insurerColList...).
		Order(goqu.C("name").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build insurer search: %w", err)
	}
	rows, err := r.q.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Insurer
	for rows.Next() {
		i, err := scanInsurer(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, i)
	}
	return items, total, rows.Err()
}
