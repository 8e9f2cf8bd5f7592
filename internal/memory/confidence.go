// internal/memory/confidence.go
package memory

import (
	"math"
	"time"
)

// Confidence model constants. New memories start at full confidence,
// reinforcement boosts toward the cap, and unused memories decay toward
// the floor but are never fully forgotten.
const (
	InitialConfidence  = 1.0
	MinConfidence      = 0.1
	MaxConfidence      = 1.0
	ReinforcementBoost = 0.15

	// Similarity at or above this triggers reinforcement instead of
	// creating a duplicate record.
	SimilarityThreshold = 0.85

	DecayHalfLifeDays    = 90
	DecayGracePeriodDays = 7

	// Persisting a recomputed confidence is skipped when the change is
	// below this floor, to avoid needless writes.
	decayNoiseFloor = 0.01
)

// DecayedConfidence computes the time-decayed confidence of a memory at
// the given instant. The reference time is lastAccessed when non-zero,
// otherwise createdAt. Within the grace period confidence is unchanged;
// after it, confidence halves every DecayHalfLifeDays, floored at
// MinConfidence.
//
// The result depends only on the inputs: recomputing with the same
// reference time always yields the same value, so decay sweeps are
// idempotent within a time window.
func DecayedConfidence(confidence float64, createdAt, lastAccessed, now time.Time) float64 {
	ref := createdAt
	if !lastAccessed.IsZero() {
		ref = lastAccessed
	}

	elapsedDays := now.Sub(ref).Hours() / 24
	if elapsedDays <= DecayGracePeriodDays {
		return confidence
	}

	effectiveDays := elapsedDays - DecayGracePeriodDays
	decayed := confidence * math.Pow(0.5, effectiveDays/DecayHalfLifeDays)

	return math.Max(decayed, MinConfidence)
}

// Reinforce applies the reinforcement boost, capped at MaxConfidence.
func Reinforce(confidence float64) float64 {
	return math.Min(confidence+ReinforcementBoost, MaxConfidence)
}
