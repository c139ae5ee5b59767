package odontogram

import (
	"fmt"
	"strings"

	"github.com/nzlopez07/Florens/internal/platform/apperr"
)

// Surfaces are the canonical tooth surface names stored on a Face.
var Surfaces = []string{"mesial", "distal", "oclusal", "incisal", "lingual", "palatina", "vestibular"}

var surfaceAliases = map[string]string{
	"m": "mesial", "mesial": "mesial",
	"d": "distal", "distal": "distal",
	"o": "oclusal", "oclusal": "oclusal", "occlusal": "oclusal",
	"i": "incisal", "incisal": "incisal",
	"l": "lingual", "lingual": "lingual",
	"p": "palatina", "palatina": "palatina", "palatino": "palatina", "palatal": "palatina",
	"v": "vestibular", "vestibular": "vestibular",
	"b": "vestibular", "bucal": "vestibular", "buccal": "vestibular", "labial": "vestibular",
}

// NormalizeFace maps a surface name, its English equivalent or its one
// letter abbreviation to the canonical name. Matching ignores case and
// surrounding space.
func NormalizeFace(raw string) (string, bool) {
	canonical, ok := surfaceAliases[strings.ToLower(strings.TrimSpace(raw))]
	return canonical, ok
}

// ValidateChanges rejects changes naming an unknown surface. Blank entries
// pass since ApplyChanges skips them.
func ValidateChanges(changes []FaceChange) error {
	for i, ch := range changes {
		k := ch.key()
		if k.blank() {
			continue
		}
		if _, ok := NormalizeFace(k.face); !ok {
			return apperr.ValidationCode(apperr.CodeInvalidFace,
				fmt.Sprintf("changes[%d]: unknown face %q", i, k.face))
		}
	}
	return nil
}

// FaceChange is one edit applied while deriving a new version. It is either
// a ChangeUpsert or a ChangeDelete.
type FaceChange interface {
	key() faceKey
}

// ChangeUpsert writes an annotation. On an existing face every field is
// replaced, so a nil field clears it.
type ChangeUpsert struct {
	Tooth    string
	Face     string
	MarkCode *string
	MarkText *string
	Comment  *string
}

// ChangeDelete removes the annotation for a face, if there is one.
type ChangeDelete struct {
	Tooth string
	Face  string
}

type faceKey struct {
	tooth string
	face  string
}

func (k faceKey) blank() bool { return k.tooth == "" || k.face == "" }

func newFaceKey(tooth, face string) faceKey {
	face = strings.TrimSpace(face)
	if canonical, ok := NormalizeFace(face); ok {
		face = canonical
	}
	return faceKey{strings.TrimSpace(tooth), face}
}

func (c ChangeUpsert) key() faceKey { return newFaceKey(c.Tooth, c.Face) }

func (c ChangeDelete) key() faceKey { return newFaceKey(c.Tooth, c.Face) }

// ApplyChanges clones base and applies changes in order. Changes with a
// blank tooth or face are skipped, not rejected. The result keeps base order
// for surviving faces and appends new ones; IDs and VersionIDs are zeroed
// since the faces belong to a version that does not exist yet.
func ApplyChanges(base []*Face, changes []FaceChange) []*Face {
	order := make([]faceKey, 0, len(base)+len(changes))
	index := make(map[faceKey]*Face, len(base)+len(changes))

	for _, f := range base {
		k := faceKey{f.Tooth, f.Face}
		if _, dup := index[k]; !dup {
			order = append(order, k)
		}
		index[k] = &Face{
			Tooth:    f.Tooth,
			Face:     f.Face,
			MarkCode: f.MarkCode,
			MarkText: f.MarkText,
			Comment:  f.Comment,
		}
	}

	for _, ch := range changes {
		k := ch.key()
		if k.blank() {
			continue
		}
		switch c := ch.(type) {
		case ChangeDelete:
			delete(index, k)
		case ChangeUpsert:
			f, ok := index[k]
			if !ok {
				f = &Face{Tooth: k.tooth, Face: k.face}
				index[k] = f
				order = append(order, k)
			}
			f.MarkCode = c.MarkCode
			f.MarkText = c.MarkText
			f.Comment = c.Comment
		}
	}

	out := make([]*Face, 0, len(index))
	seen := make(map[faceKey]bool, len(index))
	for _, k := range order {
		f, ok := index[k]
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out
}
