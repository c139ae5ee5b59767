package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/nzlopez07/Florens/internal/platform/apperr"
	"github.com/nzlopez07/Florens/internal/platform/db/dbtest"
)

func newPGService(t *testing.T, d *dbtest.DB, patients ...int64) *Service {
	t.Helper()
	known := stubPatients{}
	for _, id := range patients {
		known[id] = true
	}
	return NewService(NewStorePG(d.Pool), known,
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
	)
}

func TestAppointmentStorePG_ListAndHistory(t *testing.T) {
	d := dbtest.Require(t)
	ctx := context.Background()
	ana := d.InsertPatient(t, "Ana", "Gómez", "30111222")
	luis := d.InsertPatient(t, "Luis", "Pérez", "30333444")
	svc := newPGService(t, d, ana, luis)

	detail := "control de ortodoncia"
	first := &Appointment{PatientID: ana, Date: day(7), Time: "09:00", Detail: &detail}
	second := &Appointment{PatientID: luis, Date: day(7), Time: "10:00"}
	third := &Appointment{PatientID: ana, Date: day(8), Time: "11:30", DurationMinutes: 60}
	for _, a := range []*Appointment{first, second, third} {
		if err := svc.Create(ctx, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, total, err := svc.List(ctx, Filter{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Fatalf("expected 3 appointments, got total=%d len=%d", total, len(all))
	}
	if all[0].ID != first.ID || all[0].PatientName != "Ana Gómez" {
		t.Errorf("unexpected first row %+v", all[0])
	}

	date := day(7)
	if _, total, _ := svc.List(ctx, Filter{Date: &date, Limit: 10}); total != 2 {
		t.Errorf("date filter: expected 2, got %d", total)
	}
	if _, total, _ := svc.List(ctx, Filter{PatientID: ana, Limit: 10}); total != 2 {
		t.Errorf("patient filter: expected 2, got %d", total)
	}
	if got, total, _ := svc.List(ctx, Filter{Term: "ortodoncia", Limit: 10}); total != 1 || got[0].ID != first.ID {
		t.Errorf("term filter on detail: expected first appointment, got %d rows", total)
	}
	if got, _, _ := svc.List(ctx, Filter{Term: "pérez", Limit: 10}); len(got) != 1 || got[0].ID != second.ID {
		t.Errorf("term filter on patient name: unexpected result %v", got)
	}

	reason := "confirmado por teléfono"
	if _, err := svc.ChangeStatus(ctx, first.ID, StatusConfirmed, &reason); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if _, total, _ := svc.List(ctx, Filter{Status: StatusConfirmed, Limit: 10}); total != 1 {
		t.Errorf("status filter: expected 1, got %d", total)
	}

	history, err := svc.History(ctx, first.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].From != nil || history[0].To != StatusPending {
		t.Errorf("unexpected initial entry %+v", history[0])
	}
	if history[1].From == nil || *history[1].From != StatusPending || history[1].To != StatusConfirmed {
		t.Errorf("unexpected transition %+v", history[1])
	}

	if err := svc.Delete(ctx, first.ID); !apperr.HasCode(err, apperr.CodeAppointmentNotDeletable) {
		t.Errorf("expected APPOINTMENT_NOT_DELETABLE, got %v", err)
	}
	if err := svc.Delete(ctx, second.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, second.ID); !apperr.HasCode(err, apperr.CodeAppointmentNotFound) {
		t.Errorf("expected APPOINTMENT_NOT_FOUND after delete, got %v", err)
	}
}

func TestAppointmentStorePG_SweepOverdue(t *testing.T) {
	d := dbtest.Require(t)
	ctx := context.Background()
	pid := d.InsertPatient(t, "Ana", "Gómez", "30111222")
	svc := newPGService(t, d, pid)

	// fixedNow is 10:30 on the 6th.
	started := &Appointment{PatientID: pid, Date: day(6), Time: "09:00"}
	later := &Appointment{PatientID: pid, Date: day(6), Time: "11:00"}
	tomorrow := &Appointment{PatientID: pid, Date: day(7), Time: "08:00"}
	for _, a := range []*Appointment{started, later, tomorrow} {
		if err := svc.Create(ctx, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := svc.SweepOverdue(ctx, fixedNow)
	if err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept appointment, got %d", n)
	}
	got, _ := svc.Get(ctx, started.ID)
	if got.Status != StatusNoShow {
		t.Errorf("expected NoAtendido, got %s", got.Status)
	}
	if got, _ := svc.Get(ctx, later.ID); got.Status != StatusPending {
		t.Errorf("appointment not yet started was swept: %s", got.Status)
	}

	history, _ := svc.History(ctx, started.ID)
	last := history[len(history)-1]
	if last.Reason == nil || *last.Reason != ReasonOverdue {
		t.Errorf("expected reason %q, got %+v", ReasonOverdue, last)
	}

	// A second pass a day later picks up the rest and skips final ones.
	n, err = svc.SweepOverdue(ctx, fixedNow.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 swept appointments, got %d", n)
	}
}
