package odontogram

import (
	"errors"
	"time"
)

// DefaultRetention is how many versions per patient survive a write.
const DefaultRetention = 20

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("odontogram: not found")

// Version is one immutable snapshot of a patient's dental chart. Only
// IsCurrent and the bookkeeping timestamps change after creation.
type Version struct {
	ID                  int64      `db:"id" json:"id"`
	PatientID           int64      `db:"patient_id" json:"patient_id"`
	VersionSeq          int        `db:"version_seq" json:"version_seq"`
	IsCurrent           bool       `db:"is_current" json:"is_current"`
	GeneralNote         *string    `db:"general_note" json:"general_note"`
	LastProcedureSeenAt *time.Time `db:"last_procedure_seen_at" json:"last_procedure_seen_at"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
	Faces               []*Face    `db:"-" json:"faces"`
}

// Face is the annotation on one surface of one tooth. A version holds at
// most one Face per (Tooth, Face) pair.
type Face struct {
	ID        int64   `db:"id" json:"id"`
	VersionID int64   `db:"version_id" json:"version_id"`
	Tooth     string  `db:"tooth" json:"tooth"`
	Face      string  `db:"face" json:"face"`
	MarkCode  *string `db:"mark_code" json:"mark_code"`
	MarkText  *string `db:"mark_text" json:"mark_text"`
	Comment   *string `db:"comment" json:"comment"`
}

// IsStale reports whether a procedure was recorded after the snapshot.
func IsStale(latestProcedure *time.Time, createdAt time.Time) bool {
	return latestProcedure != nil && !createdAt.IsZero() && latestProcedure.After(createdAt)
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// ToMap is the JSON shape handed to the presentation layer.
func (v *Version) ToMap() map[string]interface{} {
	faces := make([]map[string]interface{}, 0, len(v.Faces))
	for _, f := range v.Faces {
		faces = append(faces, f.ToMap())
	}
	return map[string]interface{}{
		"id":                     v.ID,
		"version_seq":            v.VersionSeq,
		"is_current":             v.IsCurrent,
		"general_note":           v.GeneralNote,
		"patient_id":             v.PatientID,
		"created_at":             formatTime(v.CreatedAt),
		"updated_at":             formatTime(v.UpdatedAt),
		"last_procedure_seen_at": formatTimePtr(v.LastProcedureSeenAt),
		"faces":                  faces,
	}
}

func (f *Face) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":        f.ID,
		"tooth":     f.Tooth,
		"face":      f.Face,
		"mark_code": f.MarkCode,
		"mark_text": f.MarkText,
		"comment":   f.Comment,
	}
}

// MapVersions serializes a history list.
func MapVersions(vs []*Version) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.ToMap())
	}
	return out
}
