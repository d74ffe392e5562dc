package verify

import "math"

// WeightSet holds the per-signal weights used to fuse component scores into
// the overall confidence.
type WeightSet struct {
	FaceMatch float64 `json:"face_match"`
	OCR       float64 `json:"ocr_extraction"`
	Quality   float64 `json:"image_quality"`
	Tamper    float64 `json:"tampering_check"`
}

// baseWeights is the starting point before contextual adjustment.
var baseWeights = WeightSet{
	FaceMatch: 0.40,
	OCR:       0.30,
	Quality:   0.20,
	Tamper:    0.10,
}

// Sum returns the total weight mass.
func (w WeightSet) Sum() float64 {
	return w.FaceMatch + w.OCR + w.Quality + w.Tamper
}

// normalized rescales the set so it sums to 1. A zero set is returned as is.
func (w WeightSet) normalized() WeightSet {
	sum := w.Sum()
	if sum == 0 {
		return w
	}
	return WeightSet{
		FaceMatch: w.FaceMatch / sum,
		OCR:       w.OCR / sum,
		Quality:   w.Quality / sum,
		Tamper:    w.Tamper / sum,
	}
}

// clamped forces each weight into [0,1]. The fixed-step adjustment rules
// cannot leave the range, so this only matters if the rules ever change.
func (w WeightSet) clamped() WeightSet {
	return WeightSet{
		FaceMatch: clamp01(w.FaceMatch),
		OCR:       clamp01(w.OCR),
		Quality:   clamp01(w.Quality),
		Tamper:    clamp01(w.Tamper),
	}
}

// valid reports whether every weight is within [0,1].
func (w WeightSet) valid() bool {
	for _, v := range []float64{w.FaceMatch, w.OCR, w.Quality, w.Tamper} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// ComputeWeights derives the weights for one decision from the evaluated
// component scores. Two fixed transfers apply in order: a weak text signal
// shifts 0.10 from OCR to the biometric match, and a suspected tamper shifts
// 0.10 from quality onto the fraud signal.
//
// The set is deliberately not renormalized afterwards; the transfers are
// mass-preserving, so the sum stays at 1.0 up to float rounding. The engine's
// normalization option rescales explicitly for callers that want exact unit
// mass.
func ComputeWeights(scores map[string]float64) WeightSet {
	w := baseWeights

	if scores[string(KindOCR)] < 0.5 {
		w.FaceMatch += 0.10
		w.OCR -= 0.10
	}
	if scores[string(KindTamper)] < 0.7 {
		w.Tamper += 0.10
		w.Quality -= 0.10
	}

	return w
}
