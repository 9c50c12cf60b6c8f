package attendance

import "math"

// ClassifyTier maps a current percentage onto a risk tier. Boundaries are
// inclusive: exactly threshold is CRITICAL, exactly threshold+buffer is SAFE.
// Pure function, never fails.
func ClassifyTier(percentage, threshold, safeBuffer float64) Tier {
	switch {
	case percentage >= threshold+safeBuffer:
		return TierSafe
	case percentage >= threshold:
		return TierCritical
	default:
		return TierLow
	}
}

// ClassesNeeded is the number of additional consecutive classes that must be
// attended, with no further absences, for the running percentage to reach the
// threshold.
//
// Solves ceil((t*total - present) / (1 - t)) with t = thresholdPct/100.
// Returns 0 when total is 0, when the threshold is already met, and when
// t == 1: a 100% requirement cannot be recovered by finite attendance once a
// class has been missed, so the engine reports 0 rather than diverge.
func ClassesNeeded(present, total int, thresholdPct float64) int {
	if total <= 0 {
		return 0
	}

	t := thresholdPct / 100
	if float64(present)/float64(total) >= t {
		return 0
	}

	denominator := 1 - t
	if denominator == 0 {
		return 0
	}

	numerator := t*float64(total) - float64(present)
	return int(math.Ceil(numerator / denominator))
}

// ClassesCanMiss is the number of additional consecutive classes that may be
// skipped, with no further attendance, while the running percentage stays at
// or above the threshold.
//
// Solves floor((present - t*total) / t) with t = thresholdPct/100.
// Returns 0 when total is 0, when the subject is already below threshold, and
// when t == 0: a 0% requirement is trivially satisfied forever, but the
// return type is a finite integer, so the engine reports 0.
func ClassesCanMiss(present, total int, thresholdPct float64) int {
	if total <= 0 {
		return 0
	}

	t := thresholdPct / 100
	if t == 0 {
		return 0
	}
	if float64(present)/float64(total) < t {
		return 0
	}

	numerator := float64(present) - t*float64(total)
	return int(math.Floor(numerator / t))
}
