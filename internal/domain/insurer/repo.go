package insurer

import "context"

type Repository interface {
	Create(ctx context.Context, i *Insurer) error
	GetByID(ctx context.Context, id int64) (*Insurer, error)
	Search(ctx context.Context, term string, limit, offset int) ([]*Insurer, int, error)
}
