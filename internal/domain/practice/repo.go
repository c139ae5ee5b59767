package practice

import "context"

type Repository interface {
	Create(ctx context.Context, p *Practice) error
	GetByID(ctx context.Context, id int64) (*Practice, error)
	GetByCode(ctx context.Context, code string) (*Practice, error)
	Update(ctx context.Context, p *Practice) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Practice, int, error)
}
