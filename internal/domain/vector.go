package domain

import "math"

// ValidateVector enforces correct dimension, no NaN/Inf, at least 10%
// non-zero entries, and L2 magnitude within [0.1, 100.0]. The first
// violated rule is returned as a ValidationFailed error.
func ValidateVector(v []float32, wantDim int) error {
	if len(v) != wantDim {
		return NewError(ErrValidationFailed, "embedding dimension mismatch").
			WithRetryable(false)
	}

	nonZero := 0
	var sumSq float64
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return NewError(ErrValidationFailed, "embedding contains NaN or infinite value").
				WithRetryable(false)
		}
		if f != 0 {
			nonZero++
		}
		sumSq += float64(f) * float64(f)
	}

	if len(v) > 0 && float64(nonZero)/float64(len(v)) < 0.10 {
		return NewError(ErrValidationFailed, "embedding is degenerate: fewer than 10% non-zero entries").
			WithRetryable(false)
	}

	magnitude := math.Sqrt(sumSq)
	if magnitude < 0.1 || magnitude > 100.0 {
		return NewError(ErrValidationFailed, "embedding L2 magnitude outside plausible range [0.1, 100.0]").
			WithRetryable(false)
	}

	return nil
}
