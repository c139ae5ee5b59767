package odontogram

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type memState struct {
	patients      map[int64]bool
	procedures    map[int64][]time.Time
	versions      map[int64]*Version
	faces         map[int64]*Face
	nextVersionID int64
	nextFaceID    int64
}

func (s *memState) clone() *memState {
	c := &memState{
		patients:      make(map[int64]bool, len(s.patients)),
		procedures:    make(map[int64][]time.Time, len(s.procedures)),
		versions:      make(map[int64]*Version, len(s.versions)),
		faces:         make(map[int64]*Face, len(s.faces)),
		nextVersionID: s.nextVersionID,
		nextFaceID:    s.nextFaceID,
	}
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.procedures {
		c.procedures[k] = append([]time.Time(nil), v...)
	}
	for k, v := range s.versions {
		cp := *v
		c.versions[k] = &cp
	}
	for k, f := range s.faces {
		cp := *f
		c.faces[k] = &cp
	}
	return c
}

// memUoW is an in-memory UnitOfWork. Do holds a mutex for the whole
// callback, snapshots state first and restores it on error or panic.
type memUoW struct {
	mu     sync.Mutex
	st     *memState
	faults map[string]func() error
	locks  int
}

func newMemUoW() *memUoW {
	return &memUoW{
		st: &memState{
			patients:   make(map[int64]bool),
			procedures: make(map[int64][]time.Time),
			versions:   make(map[int64]*Version),
			faces:      make(map[int64]*Face),
		},
		faults: make(map[string]func() error),
	}
}

func (u *memUoW) Do(ctx context.Context, fn func(ctx context.Context, repo Repository) error) (err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	snapshot := u.st.clone()
	defer func() {
		if p := recover(); p != nil {
			u.st = snapshot
			panic(p)
		}
		if err != nil {
			u.st = snapshot
		}
	}()
	return fn(ctx, &memRepo{u: u})
}

func (u *memUoW) addPatient(id int64) {
	u.st.patients[id] = true
}

func (u *memUoW) addProcedure(patientID int64, at time.Time) {
	u.st.procedures[patientID] = append(u.st.procedures[patientID], at)
}

// seedVersion stores a version with faces directly.
func (u *memUoW) seedVersion(v *Version, faces ...*Face) *Version {
	u.st.nextVersionID++
	v.ID = u.st.nextVersionID
	cp := *v
	cp.Faces = nil
	u.st.versions[v.ID] = &cp
	for _, f := range faces {
		u.st.nextFaceID++
		f.ID = u.st.nextFaceID
		f.VersionID = v.ID
		fc := *f
		u.st.faces[f.ID] = &fc
	}
	return v
}

func (u *memUoW) patientVersions(patientID int64) []*Version {
	var out []*Version
	for _, v := range u.st.versions {
		if v.PatientID == patientID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionSeq > out[j].VersionSeq })
	return out
}

func (u *memUoW) facesOf(versionID int64) []*Face {
	var out []*Face
	for _, f := range u.st.faces {
		if f.VersionID == versionID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memRepo struct {
	u *memUoW
}

func (r *memRepo) fault(name string) error {
	if f := r.u.faults[name]; f != nil {
		return f()
	}
	return nil
}

func (r *memRepo) PatientExists(_ context.Context, patientID int64) (bool, error) {
	if err := r.fault("PatientExists"); err != nil {
		return false, err
	}
	return r.u.st.patients[patientID], nil
}

func (r *memRepo) LatestProcedureAt(_ context.Context, patientID int64) (*time.Time, error) {
	var latest *time.Time
	for _, at := range r.u.st.procedures[patientID] {
		if latest == nil || at.After(*latest) {
			t := at
			latest = &t
		}
	}
	return latest, nil
}

func (r *memRepo) LockPatient(context.Context, int64) error {
	r.u.locks++
	return r.fault("LockPatient")
}

func (r *memRepo) GetCurrent(_ context.Context, patientID int64) (*Version, error) {
	for _, v := range r.u.patientVersions(patientID) {
		if v.IsCurrent {
			cp := *v
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) GetByID(_ context.Context, id int64) (*Version, error) {
	v, ok := r.u.st.versions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *memRepo) MaxVersionSeq(_ context.Context, patientID int64) (int, error) {
	seq := 0
	for _, v := range r.u.patientVersions(patientID) {
		if v.VersionSeq > seq {
			seq = v.VersionSeq
		}
	}
	return seq, nil
}

func (r *memRepo) CreateVersion(_ context.Context, v *Version) error {
	if err := r.fault("CreateVersion"); err != nil {
		return err
	}
	for _, existing := range r.u.patientVersions(v.PatientID) {
		if existing.VersionSeq == v.VersionSeq {
			return &pgconn.PgError{Code: "23505", ConstraintName: "uq_odontogram_patient_seq"}
		}
	}
	r.u.st.nextVersionID++
	v.ID = r.u.st.nextVersionID
	cp := *v
	cp.Faces = nil
	r.u.st.versions[v.ID] = &cp
	return nil
}

func (r *memRepo) ListFaces(_ context.Context, versionID int64) ([]*Face, error) {
	return r.u.facesOf(versionID), nil
}

func (r *memRepo) InsertFaces(_ context.Context, versionID int64, faces []*Face) error {
	if err := r.fault("InsertFaces"); err != nil {
		return err
	}
	seen := make(map[[2]string]bool)
	for _, f := range r.u.facesOf(versionID) {
		seen[[2]string{f.Tooth, f.Face}] = true
	}
	for _, f := range faces {
		k := [2]string{f.Tooth, f.Face}
		if seen[k] {
			return &pgconn.PgError{Code: "23505", ConstraintName: "uq_odontogram_face"}
		}
		seen[k] = true
		r.u.st.nextFaceID++
		f.ID = r.u.st.nextFaceID
		f.VersionID = versionID
		cp := *f
		r.u.st.faces[f.ID] = &cp
	}
	return nil
}

func (r *memRepo) DemoteOthers(_ context.Context, patientID, keepID int64) error {
	if err := r.fault("DemoteOthers"); err != nil {
		return err
	}
	for _, v := range r.u.patientVersions(patientID) {
		if v.ID != keepID {
			v.IsCurrent = false
		}
	}
	return nil
}

func (r *memRepo) ListVersionIDs(_ context.Context, patientID int64) ([]int64, error) {
	var ids []int64
	for _, v := range r.u.patientVersions(patientID) {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

func (r *memRepo) DeleteVersions(_ context.Context, ids []int64) error {
	if err := r.fault("DeleteVersions"); err != nil {
		return err
	}
	doomed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
		delete(r.u.st.versions, id)
	}
	for id, f := range r.u.st.faces {
		if doomed[f.VersionID] {
			delete(r.u.st.faces, id)
		}
	}
	return nil
}

func (r *memRepo) ListVersions(_ context.Context, patientID int64, limit int) ([]*Version, error) {
	var out []*Version
	for _, v := range r.u.patientVersions(patientID) {
		if len(out) == limit {
			break
		}
		cp := *v
		cp.Faces = r.u.facesOf(v.ID)
		if cp.Faces == nil {
			cp.Faces = []*Face{}
		}
		out = append(out, &cp)
	}
	return out, nil
}
