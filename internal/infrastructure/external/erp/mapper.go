package erp

import (
	"github.com/unitrack-hub/attendance-engine/internal/domain/attendance"
	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NORMALIZER
// ══════════════════════════════════════════════════════════════════════════════

// Normalizer translates raw ERP records into domain subjects. It is the
// anti-corruption boundary: everything downstream sees clean attendance.Subject
// values and never a vendor field name.
type Normalizer struct {
	overrides map[string]string
}

// NewNormalizer creates a normalizer with the deployment's field overrides.
func NewNormalizer(overrides map[string]string) *Normalizer {
	return &Normalizer{overrides: overrides}
}

// UnknownSubject names subjects whose record carries no recognizable title.
const UnknownSubject = "Unknown"

// Normalize maps the raw payload to a student profile and subject list.
// Records with no recognizable counts normalize to zero-count subjects rather
// than being dropped; a nil or empty payload is shared.ErrEmptyPayload.
func (n *Normalizer) Normalize(payload []RawRecord) (attendance.StudentProfile, []attendance.Subject, error) {
	if len(payload) == 0 {
		return attendance.StudentProfile{}, nil, shared.NewDomainError("normalizer", "Normalize", shared.ErrEmptyPayload, "attendance payload is empty")
	}

	subjects := make([]attendance.Subject, 0, len(payload))
	for _, rec := range payload {
		subjects = append(subjects, n.mapSubject(rec))
	}

	// Profile fields ride along on the attendance records in every vendor
	// payload observed so far; the first record is as good as any.
	profile := n.mapProfile(payload[0]).Defaulted()

	return profile, subjects, nil
}

func (n *Normalizer) mapSubject(rec RawRecord) attendance.Subject {
	name := rec.probeString(n.overrides[FieldSubject], subjectKeys)
	if name == "" {
		name = UnknownSubject
	}
	return attendance.NewSubject(
		name,
		rec.probeString(n.overrides[FieldCode], codeKeys),
		rec.probeInt(n.overrides[FieldPresent], presentKeys),
		rec.probeInt(n.overrides[FieldAbsent], absentKeys),
		rec.probeString(n.overrides[FieldFaculty], facultyKeys),
		rec.probeString(n.overrides[FieldTerm], termKeys),
	)
}

func (n *Normalizer) mapProfile(rec RawRecord) attendance.StudentProfile {
	return attendance.StudentProfile{
		Name:        rec.probeString("", studentNameKeys),
		RollNumber:  rec.probeString("", rollNoKeys),
		Branch:      rec.probeString("", branchKeys),
		Section:     rec.probeString("", sectionKeys),
		Institution: rec.probeString("", institutionKeys),
	}
}
