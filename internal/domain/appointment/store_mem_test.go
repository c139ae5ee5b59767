package appointment

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// memStore is an in-memory Store. Do snapshots state and restores it when
// the callback fails.
type memStore struct {
	appts   map[int64]*Appointment
	changes []*StatusChange
	nextID  int64
	nextSC  int64
	names   map[int64]string

	failUpdate bool
}

func newMemStore() *memStore {
	return &memStore{appts: make(map[int64]*Appointment), names: make(map[int64]string)}
}

func (m *memStore) Do(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	appts := make(map[int64]*Appointment, len(m.appts))
	for id, a := range m.appts {
		cp := *a
		appts[id] = &cp
	}
	changes := append([]*StatusChange(nil), m.changes...)
	nextID, nextSC := m.nextID, m.nextSC

	if err := fn(ctx, m); err != nil {
		m.appts, m.changes, m.nextID, m.nextSC = appts, changes, nextID, nextSC
		return err
	}
	return nil
}

func (m *memStore) Create(_ context.Context, a *Appointment) error {
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) GetForUpdate(ctx context.Context, id int64) (*Appointment, error) {
	return m.GetByID(ctx, id)
}

func (m *memStore) List(_ context.Context, f Filter) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if f.Date != nil && !CivilDate(a.Date).Equal(CivilDate(*f.Date)) {
			continue
		}
		if f.From != nil && CivilDate(a.Date).Before(CivilDate(*f.From)) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.PatientID != 0 && a.PatientID != f.PatientID {
			continue
		}
		if f.Term != "" && !strings.Contains(strings.ToLower(m.names[a.PatientID]), strings.ToLower(f.Term)) {
			continue
		}
		cp := *a
		cp.PatientName = m.names[a.PatientID]
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	total := len(result)
	if f.Offset >= len(result) {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if f.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[f.Offset:end], total, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id int64, status Status, at time.Time) error {
	if m.failUpdate {
		return errors.New("update failed")
	}
	a, ok := m.appts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.Status = status
	a.UpdatedAt = at
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.appts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.appts, id)
	return nil
}

func (m *memStore) RecordStatusChange(_ context.Context, sc *StatusChange) error {
	m.nextSC++
	sc.ID = m.nextSC
	cp := *sc
	m.changes = append(m.changes, &cp)
	return nil
}

func (m *memStore) ListStatusChanges(_ context.Context, appointmentID int64) ([]*StatusChange, error) {
	var out []*StatusChange
	for _, sc := range m.changes {
		if sc.AppointmentID == appointmentID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (m *memStore) ListOverdue(_ context.Context, today time.Time, sinceMidnight time.Duration) ([]*Appointment, error) {
	now := CivilDate(today).Add(sinceMidnight)
	var out []*Appointment
	for _, a := range m.appts {
		if a.IsOverdue(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// put stores a fixture directly, bypassing validation.
func (m *memStore) put(a *Appointment) *Appointment {
	m.nextID++
	a.ID = m.nextID
	cp := *a
	m.appts[a.ID] = &cp
	return a
}
