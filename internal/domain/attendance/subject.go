// Package attendance contains the core attendance domain model: subjects,
// risk tiers, threshold rules, and the pure projection math. This is the core
// of the engine - there are no external dependencies here.
package attendance

import (
	"math"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Tier is the attendance risk classification of a subject.
type Tier string

const (
	// TierSafe - percentage is at least threshold + buffer.
	TierSafe Tier = "SAFE"
	// TierCritical - percentage is at or above threshold but inside the buffer.
	TierCritical Tier = "CRITICAL"
	// TierLow - percentage is below threshold.
	TierLow Tier = "LOW"
)

// IsValid reports whether the tier is one of the known values.
func (t Tier) IsValid() bool {
	return t == TierSafe || t == TierCritical || t == TierLow
}

// priority orders tiers by how badly they need attention (LOW first).
func (t Tier) priority() int {
	switch t {
	case TierLow:
		return 0
	case TierCritical:
		return 1
	default:
		return 2
	}
}

// Subject is one academic course's attendance record as normalized from the
// ERP payload. Present and Absent are authoritative; Total and Percentage are
// always derived from them.
type Subject struct {
	// Name is the subject name ("Unknown" when the ERP omitted it).
	Name string `json:"name"`

	// Code is the subject code (may be empty).
	Code string `json:"code"`

	// Present is the number of classes attended.
	Present int `json:"present"`

	// Absent is the number of classes missed.
	Absent int `json:"absent"`

	// Total is always Present + Absent.
	Total int `json:"total"`

	// Percentage is Present/Total*100 rounded to 2 decimals, 0 when Total is 0.
	Percentage float64 `json:"percentage"`

	// Faculty is the trimmed faculty name.
	Faculty string `json:"faculty"`

	// Term is the academic term the record belongs to.
	Term string `json:"term"`
}

// NewSubject builds a Subject with the derived fields enforced.
func NewSubject(name, code string, present, absent int, faculty, term string) Subject {
	if present < 0 {
		present = 0
	}
	if absent < 0 {
		absent = 0
	}
	total := present + absent
	return Subject{
		Name:       name,
		Code:       code,
		Present:    present,
		Absent:     absent,
		Total:      total,
		Percentage: Percentage(present, total),
		Faculty:    strings.TrimSpace(faculty),
		Term:       term,
	}
}

// Percentage computes present/total*100 rounded to 2 decimals.
// Returns 0 when total is 0.
func Percentage(present, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round2(float64(present) / float64(total) * 100)
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Default profile values used when the ERP payload carries no student info.
const (
	DefaultStudentName = "Student"
	DefaultInstitution = "Your Institution"
)

// StudentProfile holds whatever student identity the ERP exposed.
// Every field is optional upstream; absent values are defaulted.
type StudentProfile struct {
	Name        string `json:"name"`
	RollNumber  string `json:"rollNumber"`
	Branch      string `json:"branch"`
	Section     string `json:"section"`
	Institution string `json:"institution"`
}

// Defaulted returns a copy with empty name/institution replaced by the
// engine defaults.
func (p StudentProfile) Defaulted() StudentProfile {
	if strings.TrimSpace(p.Name) == "" {
		p.Name = DefaultStudentName
	}
	if strings.TrimSpace(p.Institution) == "" {
		p.Institution = DefaultInstitution
	}
	return p
}
