package erp

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// RAW PAYLOAD
// ══════════════════════════════════════════════════════════════════════════════

// RawRecord is one element of the ERP's attendance JSON array, kept schemaless
// because no two vendors agree on field names. The probe lists below translate
// it into domain values.
type RawRecord map[string]any

// Canonical field keys used in Config.FieldOverrides.
const (
	FieldPresent = "present"
	FieldAbsent  = "absent"
	FieldSubject = "subject"
	FieldCode    = "code"
	FieldFaculty = "faculty"
	FieldTerm    = "term"
)

// Probe lists, ordered by how often each spelling shows up across ERP vendors.
// The first key present in the record wins. "facultName" is not a typo: one
// widely deployed vendor ships that spelling.
var (
	presentKeys = []string{"presentCount", "present", "attended", "attendedClasses"}
	absentKeys  = []string{"absentCount", "absent", "missed", "missedClasses"}
	subjectKeys = []string{"subject", "subjectName", "courseName", "course"}
	codeKeys    = []string{"subjectCode", "code", "courseCode"}
	facultyKeys = []string{"facultName", "facultyName", "faculty", "teacher", "instructor"}
	termKeys    = []string{"term", "termName", "semester"}

	studentNameKeys = []string{"studentName", "name", "fullName"}
	rollNoKeys      = []string{"rollNo", "rollNumber", "registerNo", "enrollmentNo"}
	branchKeys      = []string{"branch", "department", "course", "program"}
	sectionKeys     = []string{"section", "sectionName", "class"}
	institutionKeys = []string{"institution", "college", "university", "school"}
)

// probeInt returns the first present key's value coerced to int, or 0 when no
// key is present or the value is unparseable. Counts default to zero rather
// than failing the sync: a record with a missing count is still a record.
func (r RawRecord) probeInt(override string, keys []string) int {
	if override != "" {
		if v, ok := r[override]; ok {
			return coerceInt(v)
		}
	}
	for _, k := range keys {
		if v, ok := r[k]; ok {
			return coerceInt(v)
		}
	}
	return 0
}

// probeString returns the first present key's non-empty value, or "".
func (r RawRecord) probeString(override string, keys []string) string {
	if override != "" {
		if v, ok := r[override]; ok {
			if s := coerceString(v); s != "" {
				return s
			}
		}
	}
	for _, k := range keys {
		if v, ok := r[k]; ok {
			if s := coerceString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// coerceInt handles the numeric encodings ERPs actually emit: JSON numbers
// decode as float64, but plenty of vendors serialize counts as strings.
func coerceInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
		return 0
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		if i, err := strconv.Atoi(s); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
		return 0
	default:
		return 0
	}
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	default:
		return ""
	}
}
