package locality

import "context"

type Repository interface {
	// Insert stores l unless a locality with the same name (ignoring case)
	// exists, and returns whichever row ends up in the table.
	Insert(ctx context.Context, l *Locality) (created bool, err error)
	GetByID(ctx context.Context, id int64) (*Locality, error)
	Search(ctx context.Context, term string, limit, offset int) ([]*Locality, int, error)
}
