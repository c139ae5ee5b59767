package locality

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/nzlopez07/Florens/internal/platform/db"
)

type localityRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &localityRepoPG{q: q} }

func scanLocality(row pgx.Row) (*Locality, error) {
	var l Locality
	err := row.Scan(&l.ID, &l.Name, &l.CreatedAt)
	return &l, err
}

// Insert relies on the unique index over LOWER(name); the no-op update makes
// RETURNING yield the existing row on conflict.
func (r *localityRepoPG) Insert(ctx context.Context, l *Locality) (bool, error) {
	var created bool
	err := r.q.QueryRow(ctx, `
		INSERT INTO localities (name) VALUES ($1)
		ON CONFLICT (LOWER(name)) DO UPDATE SET name = localities.name
		RETURNING id, name, created_at, (xmax = 0)`, l.Name,
	).Scan(&l.ID, &l.Name, &l.CreatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("insert locality: %w", err)
	}
	return created, nil
}

func (r *localityRepoPG) GetByID(ctx context.Context, id int64) (*Locality, error) {
	return scanLocality(r.q.QueryRow(ctx, `SELECT id, name, created_at FROM localities WHERE id = $1`, id))
}

func (r *localityRepoPG) Search(ctx context.Context, term string, limit, offset int) ([]*Locality, int, error) {
	base := db.PG.From("localities").Prepared(true)
	if term = strings.TrimSpace(term); term != "" {
		base = base.Where(goqu.C("name").ILike("%" + term + "%"))
	}

	countSQL, countArgs, err := base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build locality count: %w", err)
	}
	var total int
	if err := r.q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL, listArgs, err := base.Select("id", "name", "created_at").
		Order(goqu.C("name").Asc(), goqu.C("id").Asc()).
		Limit(uint(limit)).Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build locality search: %w", err)
	}
	rows, err := r.q.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Locality
	for rows.Next() {
		l, err := scanLocality(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}
