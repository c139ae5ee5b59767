package odontogram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nzlopez07/Florens/internal/platform/apperr"
	"github.com/nzlopez07/Florens/internal/platform/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestManager(opts ...Option) (*Manager, *memUoW, *recordingPublisher) {
	uow := newMemUoW()
	uow.addPatient(7)
	uow.addPatient(8)
	pub := &recordingPublisher{}
	clock := &testClock{now: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)}
	base := []Option{WithClock(clock.Now), WithPublisher(pub)}
	return NewManager(uow, append(base, opts...)...), uow, pub
}

func str(s string) *string { return &s }

func currentCount(uow *memUoW, patientID int64) int {
	n := 0
	for _, v := range uow.patientVersions(patientID) {
		if v.IsCurrent {
			n++
		}
	}
	return n
}

func TestGetOrCreateCurrent_NewPatient(t *testing.T) {
	mgr, uow, pub := newTestManager()

	view, err := mgr.GetOrCreateCurrent(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := view.Version
	if v.VersionSeq != 1 || !v.IsCurrent {
		t.Errorf("expected current version 1, got seq=%d current=%v", v.VersionSeq, v.IsCurrent)
	}
	if len(v.Faces) != 0 {
		t.Errorf("expected no faces, got %d", len(v.Faces))
	}
	if view.Stale {
		t.Error("new chart must not be stale")
	}
	if view.LatestProcedureAt != nil {
		t.Errorf("expected no latest procedure, got %v", view.LatestProcedureAt)
	}
	if len(view.History) != 1 || view.History[0].ID != v.ID {
		t.Errorf("expected history with the new version, got %d entries", len(view.History))
	}
	if currentCount(uow, 7) != 1 {
		t.Errorf("expected exactly one current version")
	}
	if pub.count() != 1 {
		t.Errorf("expected one version_created event, got %d", pub.count())
	}
}

func TestGetOrCreateCurrent_Idempotent(t *testing.T) {
	mgr, uow, pub := newTestManager()
	ctx := context.Background()

	first, err := mgr.GetOrCreateCurrent(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := mgr.GetOrCreateCurrent(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Version.ID != second.Version.ID {
		t.Errorf("expected same version, got %d and %d", first.Version.ID, second.Version.ID)
	}
	if n := len(uow.patientVersions(7)); n != 1 {
		t.Errorf("expected one stored version, got %d", n)
	}
	if uow.locks != 1 {
		t.Errorf("expected only the creating call to lock, got %d locks", uow.locks)
	}
	if pub.count() != 1 {
		t.Errorf("expected a single event, got %d", pub.count())
	}
}

func TestGetOrCreateCurrent_StaleExistingVersion(t *testing.T) {
	mgr, uow, _ := newTestManager()
	jan10 := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	jan15 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	for seq := 1; seq <= 3; seq++ {
		uow.seedVersion(&Version{PatientID: 7, VersionSeq: seq, IsCurrent: seq == 3, CreatedAt: jan10.AddDate(0, 0, seq-3), UpdatedAt: jan10})
	}
	uow.addProcedure(7, jan15)

	view, err := mgr.GetOrCreateCurrent(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Version.VersionSeq != 3 {
		t.Errorf("expected version 3, got %d", view.Version.VersionSeq)
	}
	if !view.Stale {
		t.Error("expected stale chart")
	}
	if view.LatestProcedureAt == nil || !view.LatestProcedureAt.Equal(jan15) {
		t.Errorf("expected latest procedure %s, got %v", jan15, view.LatestProcedureAt)
	}
	if n := len(uow.patientVersions(7)); n != 3 {
		t.Errorf("read must not create versions, found %d", n)
	}
}

func TestGetOrCreateCurrent_RecordsLatestProcedure(t *testing.T) {
	mgr, uow, _ := newTestManager()
	seen := time.Date(2024, 1, 20, 8, 0, 0, 0, time.UTC)
	uow.addProcedure(7, seen)

	view, err := mgr.GetOrCreateCurrent(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := view.Version.LastProcedureSeenAt
	if got == nil || !got.Equal(seen) {
		t.Errorf("expected last_procedure_seen_at %s, got %v", seen, got)
	}
	if view.Stale {
		t.Error("procedure before the snapshot must not make it stale")
	}
}

func TestGetOrCreateCurrent_PatientNotFound(t *testing.T) {
	mgr, uow, _ := newTestManager()

	_, err := mgr.GetOrCreateCurrent(context.Background(), 99)
	if !apperr.HasCode(err, apperr.CodePatientNotFound) {
		t.Fatalf("expected PATIENT_NOT_FOUND, got %v", err)
	}
	if len(uow.st.versions) != 0 {
		t.Error("no version may be created for a missing patient")
	}
}

func TestCreateVersionFrom_FirstEdit(t *testing.T) {
	mgr, uow, pub := newTestManager()
	ctx := context.Background()

	first, err := mgr.GetOrCreateCurrent(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, history, err := mgr.CreateVersionFrom(ctx, 7,
		[]FaceChange{ChangeUpsert{Tooth: "11", Face: "vestibular", MarkCode: str("CAR")}}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.VersionSeq != 2 || !v.IsCurrent {
		t.Errorf("expected current version 2, got seq=%d current=%v", v.VersionSeq, v.IsCurrent)
	}
	if len(v.Faces) != 1 {
		t.Fatalf("expected one face, got %d", len(v.Faces))
	}
	f := v.Faces[0]
	if f.Tooth != "11" || f.Face != "vestibular" || f.MarkCode == nil || *f.MarkCode != "CAR" {
		t.Errorf("unexpected face %+v", f)
	}
	if f.ID == 0 || f.VersionID != v.ID {
		t.Errorf("expected stored face ids, got id=%d version=%d", f.ID, f.VersionID)
	}

	old, _ := (&memRepo{u: uow}).GetByID(ctx, first.Version.ID)
	if old.IsCurrent {
		t.Error("version 1 must no longer be current")
	}
	if currentCount(uow, 7) != 1 {
		t.Error("expected exactly one current version")
	}
	if len(history) != 2 || history[0].ID != v.ID {
		t.Errorf("expected newest-first history of 2, got %d", len(history))
	}
	if v.LastProcedureSeenAt == nil || !v.LastProcedureSeenAt.Equal(v.CreatedAt) {
		t.Error("new versions record their creation instant as last_procedure_seen_at")
	}
	if pub.count() != 2 {
		t.Errorf("expected events for both versions, got %d", pub.count())
	}
	if pub.events[1].Type != events.OdontogramVersionCreated || pub.events[1].Data["version_id"] != v.ID {
		t.Errorf("unexpected event %+v", pub.events[1])
	}
}

func TestCreateVersionFrom_WithoutAnyVersion(t *testing.T) {
	mgr, uow, _ := newTestManager()

	v, _, err := mgr.CreateVersionFrom(context.Background(), 7,
		[]FaceChange{ChangeUpsert{Tooth: "11", Face: "vestibular", MarkCode: str("CAR")}}, str("  primera consulta "), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.VersionSeq != 2 {
		t.Errorf("expected an empty version 1 to be created as base, got seq %d", v.VersionSeq)
	}
	if v.GeneralNote == nil || *v.GeneralNote != "primera consulta" {
		t.Errorf("expected trimmed note, got %v", v.GeneralNote)
	}
	if currentCount(uow, 7) != 1 || len(uow.patientVersions(7)) != 2 {
		t.Error("expected two versions with one current")
	}
}

func TestCreateVersionFrom_UnknownFace(t *testing.T) {
	mgr, uow, pub := newTestManager()

	_, _, err := mgr.CreateVersionFrom(context.Background(), 7, []FaceChange{
		ChangeUpsert{Tooth: "11", Face: "vestibular", MarkCode: str("CAR")},
		ChangeUpsert{Tooth: "11", Face: "banana", MarkCode: str("CAR")},
	}, nil, nil)
	if !apperr.HasCode(err, apperr.CodeInvalidFace) {
		t.Fatalf("expected INVALID_FACE, got %v", err)
	}
	if len(uow.patientVersions(7)) != 0 || pub.count() != 0 {
		t.Error("a rejected edit must not create versions")
	}
}

func TestCreateVersionFrom_FaceAliases(t *testing.T) {
	mgr, _, _ := newTestManager()

	v, _, err := mgr.CreateVersionFrom(context.Background(), 7, []FaceChange{
		ChangeUpsert{Tooth: "16", Face: "O", MarkCode: str("CAR")},
		ChangeUpsert{Tooth: "16", Face: " Occlusal ", MarkCode: str("OBT")},
		ChangeUpsert{Tooth: "21", Face: "buccal"},
	}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Faces) != 2 {
		t.Fatalf("expected aliases to collapse into 2 faces, got %d", len(v.Faces))
	}
	if v.Faces[0].Face != "oclusal" || *v.Faces[0].MarkCode != "OBT" {
		t.Errorf("unexpected first face %+v", v.Faces[0])
	}
	if v.Faces[1].Face != "vestibular" {
		t.Errorf("expected buccal stored as vestibular, got %s", v.Faces[1].Face)
	}
}

func TestCreateVersionFrom_DeleteFace(t *testing.T) {
	mgr, uow, _ := newTestManager()
	base := uow.seedVersion(&Version{PatientID: 7, VersionSeq: 1, IsCurrent: true, CreatedAt: time.Now()},
		&Face{Tooth: "11", Face: "vestibular", MarkCode: str("CAR")},
		&Face{Tooth: "12", Face: "mesial", MarkText: str("obturación")},
	)

	v, _, err := mgr.CreateVersionFrom(context.Background(), 7,
		[]FaceChange{ChangeDelete{Tooth: "11", Face: "vestibular"}}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Faces) != 1 || v.Faces[0].Tooth != "12" {
		t.Fatalf("expected only tooth 12 to remain, got %+v", v.Faces)
	}
	if len(uow.facesOf(base.ID)) != 2 {
		t.Error("base version faces must be untouched")
	}
}

func TestCreateVersionFrom_OverwriteIsFull(t *testing.T) {
	mgr, uow, _ := newTestManager()
	uow.seedVersion(&Version{PatientID: 7, VersionSeq: 1, IsCurrent: true, CreatedAt: time.Now()},
		&Face{Tooth: "11", Face: "vestibular", MarkCode: str("CAR"), Comment: str("profunda")},
	)

	v, _, err := mgr.CreateVersionFrom(context.Background(), 7,
		[]FaceChange{ChangeUpsert{Tooth: " 11 ", Face: "vestibular", MarkCode: str("OBT")}}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Faces) != 1 {
		t.Fatalf("expected one face, got %d", len(v.Faces))
	}
	f := v.Faces[0]
	if *f.MarkCode != "OBT" {
		t.Errorf("expected mark OBT, got %s", *f.MarkCode)
	}
	if f.Comment != nil {
		t.Errorf("absent fields must be cleared, comment = %q", *f.Comment)
	}
}

func TestCreateVersionFrom_ExplicitBase(t *testing.T) {
	mgr, uow, _ := newTestManager()
	old := uow.seedVersion(&Version{PatientID: 7, VersionSeq: 1, CreatedAt: time.Now()},
		&Face{Tooth: "21", Face: "distal", MarkCode: str("EXT")},
	)
	uow.seedVersion(&Version{PatientID: 7, VersionSeq: 2, IsCurrent: true, CreatedAt: time.Now()},
		&Face{Tooth: "11", Face: "vestibular", MarkCode: str("CAR")},
	)

	baseID := old.ID
	v, _, err := mgr.CreateVersionFrom(context.Background(), 7, nil, nil, &baseID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.VersionSeq != 3 {
		t.Errorf("expected seq 3, got %d", v.VersionSeq)
	}
	if len(v.Faces) != 1 || v.Faces[0].Tooth != "21" {
		t.Errorf("expected faces cloned from the explicit base, got %+v", v.Faces)
	}
}

func TestCreateVersionFrom_ForeignBase(t *testing.T) {
	mgr, uow, pub := newTestManager()
	foreign := uow.seedVersion(&Version{PatientID: 8, VersionSeq: 1, IsCurrent: true, CreatedAt: time.Now()})

	baseID := foreign.ID
	_, _, err := mgr.CreateVersionFrom(context.Background(), 7, nil, nil, &baseID)
	if !apperr.HasCode(err, apperr.CodeOdontogramNotFound) {
		t.Fatalf("expected ODONTOGRAM_NOT_FOUND, got %v", err)
	}
	missing := int64(999)
	_, _, err = mgr.CreateVersionFrom(context.Background(), 7, nil, nil, &missing)
	if !apperr.HasCode(err, apperr.CodeOdontogramNotFound) {
		t.Fatalf("expected ODONTOGRAM_NOT_FOUND for missing base, got %v", err)
	}
	if len(uow.patientVersions(7)) != 0 || pub.count() != 0 {
		t.Error("failed writes must leave nothing behind")
	}
}

func TestCreateVersionFrom_PatientNotFound(t *testing.T) {
	mgr, _, _ := newTestManager()
	_, _, err := mgr.CreateVersionFrom(context.Background(), 99, nil, nil, nil)
	if !apperr.HasCode(err, apperr.CodePatientNotFound) {
		t.Fatalf("expected PATIENT_NOT_FOUND, got %v", err)
	}
}

func TestCreateVersionFrom_Retention(t *testing.T) {
	mgr, uow, pub := newTestManager()
	for seq := 1; seq <= 25; seq++ {
		uow.seedVersion(&Version{PatientID: 7, VersionSeq: seq, IsCurrent: seq == 25, CreatedAt: time.Now()},
			&Face{Tooth: "11", Face: "mesial"})
	}
	uow.seedVersion(&Version{PatientID: 8, VersionSeq: 1, IsCurrent: true, CreatedAt: time.Now()})

	v, history, err := mgr.CreateVersionFrom(context.Background(), 7, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.VersionSeq != 26 {
		t.Errorf("expected seq 26, got %d", v.VersionSeq)
	}

	kept := uow.patientVersions(7)
	if len(kept) != DefaultRetention {
		t.Fatalf("expected %d versions, got %d", DefaultRetention, len(kept))
	}
	for i, kv := range kept {
		if want := 26 - i; kv.VersionSeq != want {
			t.Errorf("position %d: expected seq %d, got %d", i, want, kv.VersionSeq)
		}
	}
	if len(history) != DefaultRetention || history[0].ID != v.ID {
		t.Errorf("expected bounded newest-first history, got %d entries", len(history))
	}
	for _, f := range uow.st.faces {
		if _, ok := uow.st.versions[f.VersionID]; !ok {
			t.Fatalf("face %d survived its pruned version", f.ID)
		}
	}
	if len(uow.patientVersions(8)) != 1 {
		t.Error("pruning must not touch other patients")
	}
	if pub.events[0].Data["pruned"] != 6 {
		t.Errorf("expected 6 pruned versions in the event, got %v", pub.events[0].Data["pruned"])
	}
}

func TestCreateVersionFrom_CustomRetention(t *testing.T) {
	mgr, uow, _ := newTestManager(WithRetention(3))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, _, err := mgr.CreateVersionFrom(ctx, 7, nil, nil, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := len(uow.patientVersions(7)); n != 3 {
		t.Errorf("expected 3 versions, got %d", n)
	}
	if mgr.Retention() != 3 {
		t.Errorf("unexpected retention %d", mgr.Retention())
	}
	if NewManager(uow, WithRetention(0)).Retention() != DefaultRetention {
		t.Error("non-positive retention must fall back to the default")
	}
}

func TestCreateVersionFrom_RollsBackOnFailure(t *testing.T) {
	for _, step := range []string{"InsertFaces", "DemoteOthers", "DeleteVersions"} {
		t.Run(step, func(t *testing.T) {
			mgr, uow, pub := newTestManager(WithRetention(2))
			for seq := 1; seq <= 2; seq++ {
				uow.seedVersion(&Version{PatientID: 7, VersionSeq: seq, IsCurrent: seq == 2, CreatedAt: time.Now()},
					&Face{Tooth: "11", Face: "mesial"})
			}
			before := uow.st.clone()
			uow.faults[step] = func() error { return errors.New("disk full") }

			_, _, err := mgr.CreateVersionFrom(context.Background(), 7,
				[]FaceChange{ChangeUpsert{Tooth: "12", Face: "distal"}}, nil, nil)
			if !apperr.HasCode(err, apperr.CodeTransaction) {
				t.Fatalf("expected TRANSACTION_ERROR, got %v", err)
			}
			if e, _ := apperr.As(err); e.Message != "could not create version" {
				t.Errorf("unexpected message %q", e.Message)
			}

			if len(uow.st.versions) != len(before.versions) || len(uow.st.faces) != len(before.faces) {
				t.Error("failed write left rows behind")
			}
			cur, _ := (&memRepo{u: uow}).GetCurrent(context.Background(), 7)
			if cur == nil || cur.VersionSeq != 2 {
				t.Error("current version must be unchanged after rollback")
			}
			if pub.count() != 0 {
				t.Error("no event may be published for a rolled back write")
			}
		})
	}
}

func TestCreateVersionFrom_RollsBackOnPanic(t *testing.T) {
	mgr, uow, _ := newTestManager()
	uow.seedVersion(&Version{PatientID: 7, VersionSeq: 1, IsCurrent: true, CreatedAt: time.Now()})
	uow.faults["DemoteOthers"] = func() error { panic("boom") }

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		mgr.CreateVersionFrom(context.Background(), 7, nil, nil, nil)
	}()

	if n := len(uow.patientVersions(7)); n != 1 {
		t.Errorf("expected rollback to leave one version, got %d", n)
	}
}

func TestCreateVersionFrom_UniqueViolationIsConflict(t *testing.T) {
	mgr, uow, _ := newTestManager()
	uow.faults["CreateVersion"] = func() error {
		return &pgconn.PgError{Code: "23505", ConstraintName: "uq_odontogram_patient_seq"}
	}

	_, _, err := mgr.CreateVersionFrom(context.Background(), 7, nil, nil, nil)
	if !apperr.HasCode(err, apperr.CodeOdontogramConflict) {
		t.Fatalf("expected ODONTOGRAM_CONFLICT, got %v", err)
	}
}

func TestCreateVersionFrom_ConcurrentWriters(t *testing.T) {
	mgr, uow, _ := newTestManager()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := mgr.CreateVersionFrom(ctx, 7, []FaceChange{ChangeUpsert{Tooth: "11", Face: "mesial"}}, nil, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	seqs := make(map[int]bool)
	for _, v := range uow.patientVersions(7) {
		if seqs[v.VersionSeq] {
			t.Fatalf("duplicate version_seq %d", v.VersionSeq)
		}
		seqs[v.VersionSeq] = true
	}
	if len(seqs) != 11 {
		t.Errorf("expected 11 versions (empty base + 10 edits), got %d", len(seqs))
	}
	if currentCount(uow, 7) != 1 {
		t.Error("expected exactly one current version")
	}
}

func TestGetVersion(t *testing.T) {
	mgr, uow, _ := newTestManager()
	jan10 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	old := uow.seedVersion(&Version{PatientID: 7, VersionSeq: 1, CreatedAt: jan10},
		&Face{Tooth: "11", Face: "vestibular", MarkCode: str("CAR")})
	uow.seedVersion(&Version{PatientID: 7, VersionSeq: 2, IsCurrent: true, CreatedAt: jan10.AddDate(0, 0, 10)})
	uow.addProcedure(7, jan10.AddDate(0, 0, 5))

	view, err := mgr.GetVersion(context.Background(), 7, old.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Version.ID != old.ID || len(view.Version.Faces) != 1 {
		t.Errorf("expected version %d with its face, got %+v", old.ID, view.Version)
	}
	if !view.Stale {
		t.Error("staleness compares against the requested version's created_at")
	}
	if len(view.History) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(view.History))
	}
}

func TestGetVersion_OtherPatient(t *testing.T) {
	mgr, uow, _ := newTestManager()
	foreign := uow.seedVersion(&Version{PatientID: 8, VersionSeq: 1, IsCurrent: true, CreatedAt: time.Now()})

	view, err := mgr.GetVersion(context.Background(), 7, foreign.ID)
	if !apperr.HasCode(err, apperr.CodeOdontogramNotFound) {
		t.Fatalf("expected ODONTOGRAM_NOT_FOUND, got %v", err)
	}
	if view != nil {
		t.Error("no data may be returned for a foreign version")
	}

	if _, err := mgr.GetVersion(context.Background(), 7, 999); !apperr.IsNotFound(err) {
		t.Errorf("expected not found for a missing version, got %v", err)
	}
}

func TestView_ToMap(t *testing.T) {
	created := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	v := &Version{ID: 3, PatientID: 7, VersionSeq: 3, IsCurrent: true, CreatedAt: created, UpdatedAt: created, Faces: []*Face{}}
	latest := created.AddDate(0, 0, 5)

	m := (&View{Version: v, History: []*Version{v}, Stale: true, LatestProcedureAt: &latest}).ToMap()
	if m["stale"] != true {
		t.Error("expected stale flag")
	}
	if m["latest_procedure_at"] != "2024-01-15T12:00:00Z" {
		t.Errorf("unexpected latest_procedure_at %v", m["latest_procedure_at"])
	}
	if versions, ok := m["versions"].([]map[string]interface{}); !ok || len(versions) != 1 {
		t.Errorf("unexpected versions %v", m["versions"])
	}
}
