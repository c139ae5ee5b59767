package patient

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Search(ctx context.Context, term string, limit, offset int) ([]*Patient, int, error)
	Exists(ctx context.Context, id int64) (bool, error)
}
