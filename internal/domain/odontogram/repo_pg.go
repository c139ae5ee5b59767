package odontogram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/nzlopez07/Florens/internal/platform/db"
)

type odontogramRepoPG struct{ q db.Querier }

// NewRepoPG binds a repository to q, normally an open transaction.
func NewRepoPG(q db.Querier) Repository { return &odontogramRepoPG{q: q} }

const versionCols = `id, patient_id, version_seq, is_current, general_note, last_procedure_seen_at, created_at, updated_at`

const faceCols = `id, version_id, tooth, face, mark_code, mark_text, comment`

func scanVersion(row pgx.Row) (*Version, error) {
	var v Version
	err := row.Scan(&v.ID, &v.PatientID, &v.VersionSeq, &v.IsCurrent, &v.GeneralNote,
		&v.LastProcedureSeenAt, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanFace(row pgx.Row) (*Face, error) {
	var f Face
	err := row.Scan(&f.ID, &f.VersionID, &f.Tooth, &f.Face, &f.MarkCode, &f.MarkText, &f.Comment)
	return &f, err
}

func (r *odontogramRepoPG) PatientExists(ctx context.Context, patientID int64) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, patientID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check patient: %w", err)
	}
	return ok, nil
}

func (r *odontogramRepoPG) LatestProcedureAt(ctx context.Context, patientID int64) (*time.Time, error) {
	var latest *time.Time
	err := r.q.QueryRow(ctx, `SELECT MAX(performed_at) FROM procedures WHERE patient_id = $1`, patientID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("latest procedure: %w", err)
	}
	return latest, nil
}

func (r *odontogramRepoPG) LockPatient(ctx context.Context, patientID int64) error {
	_, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('odontogram:' || $1::text, 0))`, patientID)
	if err != nil {
		return fmt.Errorf("lock patient chart: %w", err)
	}
	return nil
}

func (r *odontogramRepoPG) GetCurrent(ctx context.Context, patientID int64) (*Version, error) {
	return scanVersion(r.q.QueryRow(ctx, `SELECT `+versionCols+` FROM odontogram_versions
		WHERE patient_id = $1 AND is_current
		ORDER BY version_seq DESC
		LIMIT 1`, patientID))
}

func (r *odontogramRepoPG) GetByID(ctx context.Context, id int64) (*Version, error) {
	return scanVersion(r.q.QueryRow(ctx, `SELECT `+versionCols+` FROM odontogram_versions WHERE id = $1`, id))
}

func (r *odontogramRepoPG) MaxVersionSeq(ctx context.Context, patientID int64) (int, error) {
	var seq int
	err := r.q.QueryRow(ctx, `SELECT COALESCE(MAX(version_seq), 0) FROM odontogram_versions WHERE patient_id = $1`, patientID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max version seq: %w", err)
	}
	return seq, nil
}

func (r *odontogramRepoPG) CreateVersion(ctx context.Context, v *Version) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO odontogram_versions (patient_id, version_seq, is_current, general_note, last_procedure_seen_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		v.PatientID, v.VersionSeq, v.IsCurrent, v.GeneralNote, v.LastProcedureSeenAt, v.CreatedAt, v.UpdatedAt,
	).Scan(&v.ID)
}

func (r *odontogramRepoPG) ListFaces(ctx context.Context, versionID int64) ([]*Face, error) {
	rows, err := r.q.Query(ctx, `SELECT `+faceCols+` FROM odontogram_faces WHERE version_id = $1 ORDER BY id`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	var faces []*Face
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, err
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// InsertFaces writes every face in one statement and fills in their ids.
// Postgres does not promise RETURNING rows in VALUES order, so ids are
// matched back through (tooth, face), which is unique within a version.
func (r *odontogramRepoPG) InsertFaces(ctx context.Context, versionID int64, faces []*Face) error {
	if len(faces) == 0 {
		return nil
	}
	records := make([]goqu.Record, len(faces))
	byKey := make(map[faceKey]*Face, len(faces))
	for i, f := range faces {
		records[i] = goqu.Record{
			"version_id": versionID,
			"tooth":      f.Tooth,
			"face":       f.Face,
			"mark_code":  nullable(f.MarkCode),
			"mark_text":  nullable(f.MarkText),
			"comment":    nullable(f.Comment),
		}
		byKey[faceKey{f.Tooth, f.Face}] = f
	}
	query, args, err := db.PG.Insert("odontogram_faces").Prepared(true).
		Rows(records).
		Returning("id", "tooth", "face").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build face insert: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert faces: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id int64
			k  faceKey
		)
		if err := rows.Scan(&id, &k.tooth, &k.face); err != nil {
			return fmt.Errorf("scan face id: %w", err)
		}
		f, ok := byKey[k]
		if !ok {
			return fmt.Errorf("insert faces: unexpected row %s/%s", k.tooth, k.face)
		}
		f.ID = id
		f.VersionID = versionID
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("insert faces: %w", err)
	}
	return nil
}

func (r *odontogramRepoPG) DemoteOthers(ctx context.Context, patientID, keepID int64) error {
	_, err := r.q.Exec(ctx, `UPDATE odontogram_versions SET is_current = FALSE
		WHERE patient_id = $1 AND id <> $2 AND is_current`, patientID, keepID)
	if err != nil {
		return fmt.Errorf("demote versions: %w", err)
	}
	return nil
}

func (r *odontogramRepoPG) ListVersionIDs(ctx context.Context, patientID int64) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM odontogram_versions WHERE patient_id = $1 ORDER BY version_seq DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list version ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("list version ids: %w", err)
	}
	return ids, nil
}

func (r *odontogramRepoPG) DeleteVersions(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM odontogram_versions WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}
	return nil
}

func (r *odontogramRepoPG) ListVersions(ctx context.Context, patientID int64, limit int) ([]*Version, error) {
	rows, err := r.q.Query(ctx, `SELECT `+versionCols+` FROM odontogram_versions
		WHERE patient_id = $1
		ORDER BY version_seq DESC
		LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	var versions []*Version
	byID := make(map[int64]*Version)
	ids := []int64{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		v.Faces = []*Face{}
		versions = append(versions, v)
		byID[v.ID] = v
		ids = append(ids, v.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	if len(ids) == 0 {
		return versions, nil
	}

	faceRows, err := r.q.Query(ctx, `SELECT `+faceCols+` FROM odontogram_faces
		WHERE version_id = ANY($1)
		ORDER BY version_id, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("list history faces: %w", err)
	}
	defer faceRows.Close()

	for faceRows.Next() {
		f, err := scanFace(faceRows)
		if err != nil {
			return nil, err
		}
		if v := byID[f.VersionID]; v != nil {
			v.Faces = append(v.Faces, f)
		}
	}
	return versions, faceRows.Err()
}
