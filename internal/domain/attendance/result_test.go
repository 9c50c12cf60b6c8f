package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectReport_SpecExamples(t *testing.T) {
	cfg := DefaultThresholdConfig()

	low := NewSubject("Data Structures", "CS201", 26, 14, " Dr. Rao ", "Sem 3").Report(cfg)
	assert.Equal(t, 65.0, low.Percentage)
	assert.Equal(t, TierLow, low.Tier)
	assert.Equal(t, 16, low.ClassesNeeded)
	assert.Equal(t, 0, low.ClassesCanMiss)
	assert.Equal(t, "Dr. Rao", low.Faculty)
	assert.Contains(t, low.Message, "16 consecutive")

	safe := NewSubject("Operating Systems", "CS202", 38, 2, "", "").Report(cfg)
	assert.Equal(t, 95.0, safe.Percentage)
	assert.Equal(t, TierSafe, safe.Tier)
	assert.Equal(t, 10, safe.ClassesCanMiss)
	assert.Equal(t, 0, safe.ClassesNeeded)
	assert.Contains(t, safe.Message, "Can miss 10")
}

func TestAnalyze_Summary(t *testing.T) {
	cfg := DefaultThresholdConfig()
	fetchedAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	subjects := []Subject{
		NewSubject("Data Structures", "CS201", 26, 14, "", ""), // 65% LOW
		NewSubject("Operating Systems", "CS202", 38, 2, "", ""), // 95% SAFE
		NewSubject("Networks", "CS203", 30, 10, "", ""),         // 75% CRITICAL
	}

	result := Analyze(StudentProfile{}, subjects, cfg, fetchedAt)
	require.Len(t, result.Subjects, 3)

	assert.Equal(t, 3, result.Summary.TotalSubjects)
	assert.Equal(t, 1, result.Summary.SafeCount)
	assert.Equal(t, 1, result.Summary.CriticalCount)
	assert.Equal(t, 1, result.Summary.LowCount)
	assert.Equal(t, 94, result.Summary.OverallPresent)
	assert.Equal(t, 120, result.Summary.OverallTotal)
	assert.Equal(t, 78.33, result.Summary.OverallPercentage)
	assert.Equal(t, TierCritical, result.Summary.OverallTier)
	assert.Equal(t, fetchedAt, result.FetchedAt)

	// Profile defaults applied when the ERP exposed nothing.
	assert.Equal(t, DefaultStudentName, result.Profile.Name)
	assert.Equal(t, DefaultInstitution, result.Profile.Institution)
}

func TestAnalyze_NoSubjects(t *testing.T) {
	result := Analyze(StudentProfile{Name: "Asel"}, nil, DefaultThresholdConfig(), time.Now())

	assert.Empty(t, result.Subjects)
	assert.Equal(t, 0.0, result.Summary.OverallPercentage)
	assert.Equal(t, "Asel", result.Profile.Name)
	assert.Equal(t, DefaultInstitution, result.Profile.Institution)
}

func TestPrioritySubjects(t *testing.T) {
	cfg := DefaultThresholdConfig()
	result := Analyze(StudentProfile{}, []Subject{
		NewSubject("Safe High", "S1", 39, 1, "", ""),  // 97.5% SAFE
		NewSubject("Low Worst", "L1", 10, 30, "", ""), // 25% LOW
		NewSubject("Critical", "C1", 31, 9, "", ""),   // 77.5% CRITICAL
		NewSubject("Low Mild", "L2", 26, 14, "", ""),  // 65% LOW
	}, cfg, time.Now())

	top := result.PrioritySubjects(3)
	require.Len(t, top, 3)
	assert.Equal(t, "L1", top[0].Code)
	assert.Equal(t, "L2", top[1].Code)
	assert.Equal(t, "C1", top[2].Code)

	assert.Len(t, result.PrioritySubjects(10), 4)
	assert.Nil(t, result.PrioritySubjects(0))
}

func TestNewSubject_Invariants(t *testing.T) {
	s := NewSubject("X", "", -3, 5, "", "")
	assert.Equal(t, 0, s.Present)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, s.Present+s.Absent, s.Total)
	assert.GreaterOrEqual(t, s.Percentage, 0.0)
	assert.LessOrEqual(t, s.Percentage, 100.0)
}
