package locality

import (
	"context"
	"testing"

	"github.com/nzlopez07/Florens/internal/platform/db/dbtest"
)

func TestLocalityRepoPG(t *testing.T) {
	d := dbtest.Require(t)
	ctx := context.Background()
	svc := NewService(NewRepoPG(d.Pool))

	first, created, err := svc.GetOrCreate(ctx, "villa maría")
	if err != nil || !created {
		t.Fatalf("GetOrCreate: created=%v err=%v", created, err)
	}
	again, created, err := svc.GetOrCreate(ctx, "VILLA   MARÍA")
	if err != nil || created || again.ID != first.ID {
		t.Fatalf("expected existing locality %d, got %+v created=%v err=%v", first.ID, again, created, err)
	}
	svc.GetOrCreate(ctx, "Río Cuarto")

	items, total, err := svc.Search(ctx, "MAR", 20, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 1 || items[0].Name != "Villa María" {
		t.Errorf("unexpected search result total=%d items=%+v", total, items)
	}
	if _, total, _ := svc.Search(ctx, "", 20, 0); total != 2 {
		t.Errorf("expected 2 localities, got %d", total)
	}

	if ok, _ := svc.Exists(ctx, first.ID+100); ok {
		t.Error("expected unknown locality to be missing")
	}
}
