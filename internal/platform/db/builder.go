package db

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

// PG builds Postgres statements. Call Prepared(true) on datasets so values
// travel as $n arguments instead of being inlined.
var PG = goqu.Dialect("postgres")
