package attendance

import (
	"fmt"
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT REPORT (Subject + derived view)
// ══════════════════════════════════════════════════════════════════════════════

// SubjectReport is a Subject together with its derived classification fields.
// Derived fields are computed per view from the threshold configuration and
// are never stored on the Subject itself.
type SubjectReport struct {
	Subject

	// Threshold is the effective minimum percentage resolved for this subject.
	Threshold float64 `json:"threshold"`

	// Tier is the risk classification.
	Tier Tier `json:"status"`

	// ClassesNeeded is how many consecutive classes must be attended to reach
	// the threshold (0 when already compliant).
	ClassesNeeded int `json:"classesNeeded"`

	// ClassesCanMiss is how many consecutive classes may be skipped while
	// staying at or above the threshold (0 when below it).
	ClassesCanMiss int `json:"classesCanMiss"`

	// Message is a short human-readable summary of the situation.
	Message string `json:"message"`
}

// Report classifies a subject against the threshold configuration.
func (s Subject) Report(cfg ThresholdConfig) SubjectReport {
	threshold := ResolveThreshold(s.Code, s.Name, cfg)
	tier := ClassifyTier(s.Percentage, threshold, cfg.SafeBuffer)
	needed := ClassesNeeded(s.Present, s.Total, threshold)
	canMiss := ClassesCanMiss(s.Present, s.Total, threshold)

	var message string
	switch tier {
	case TierSafe:
		message = fmt.Sprintf("Safe! Can miss %d more class(es)", canMiss)
	case TierCritical:
		message = fmt.Sprintf("Critical! Can only miss %d class(es)", canMiss)
	default:
		message = fmt.Sprintf("Low! Need to attend %d consecutive class(es)", needed)
	}

	return SubjectReport{
		Subject:        s,
		Threshold:      threshold,
		Tier:           tier,
		ClassesNeeded:  needed,
		ClassesCanMiss: canMiss,
		Message:        message,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNC RESULT
// ══════════════════════════════════════════════════════════════════════════════

// Summary aggregates tier counts and the overall attendance figure.
type Summary struct {
	TotalSubjects     int     `json:"totalSubjects"`
	SafeCount         int     `json:"safeCount"`
	CriticalCount     int     `json:"criticalCount"`
	LowCount          int     `json:"lowCount"`
	OverallPresent    int     `json:"overallPresent"`
	OverallTotal      int     `json:"overallTotal"`
	OverallPercentage float64 `json:"overallPercentage"`
	OverallTier       Tier    `json:"overallStatus"`
}

// SyncResult is the immutable outcome of one successful sync. It is assembled
// fresh each time, handed to the snapshot store and the caller, and is
// superseded - never mutated - by the next successful sync.
type SyncResult struct {
	Profile   StudentProfile  `json:"profile"`
	Subjects  []SubjectReport `json:"subjects"`
	Summary   Summary         `json:"summary"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Analyze classifies every subject and assembles the full result.
func Analyze(profile StudentProfile, subjects []Subject, cfg ThresholdConfig, fetchedAt time.Time) *SyncResult {
	reports := make([]SubjectReport, 0, len(subjects))
	summary := Summary{TotalSubjects: len(subjects)}

	for _, s := range subjects {
		report := s.Report(cfg)
		reports = append(reports, report)

		summary.OverallPresent += s.Present
		summary.OverallTotal += s.Total

		switch report.Tier {
		case TierSafe:
			summary.SafeCount++
		case TierCritical:
			summary.CriticalCount++
		default:
			summary.LowCount++
		}
	}

	summary.OverallPercentage = Percentage(summary.OverallPresent, summary.OverallTotal)
	summary.OverallTier = ClassifyTier(summary.OverallPercentage, cfg.DefaultThreshold, cfg.SafeBuffer)

	return &SyncResult{
		Profile:   profile.Defaulted(),
		Subjects:  reports,
		Summary:   summary,
		FetchedAt: fetchedAt,
	}
}

// PrioritySubjects returns the topN subjects needing the most attention:
// LOW before CRITICAL before SAFE, lowest percentage first within a tier.
func (r *SyncResult) PrioritySubjects(topN int) []SubjectReport {
	if topN <= 0 {
		return nil
	}

	ordered := make([]SubjectReport, len(r.Subjects))
	copy(ordered, r.Subjects)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Tier.priority() != ordered[j].Tier.priority() {
			return ordered[i].Tier.priority() < ordered[j].Tier.priority()
		}
		return ordered[i].Percentage < ordered[j].Percentage
	})

	if topN > len(ordered) {
		topN = len(ordered)
	}
	return ordered[:topN]
}
