package insurer

import (
	"os"
	"testing"

	"github.com/nzlopez07/Florens/internal/platform/db/dbtest"
)

func TestMain(m *testing.M) {
	os.Exit(dbtest.Main(m))
}
