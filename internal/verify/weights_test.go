package verify

import (
	"math"
	"testing"
)

func scoresFor(face, ocr, quality, tamper float64) map[string]float64 {
	return map[string]float64{
		string(KindFaceMatch): face,
		string(KindOCR):       ocr,
		string(KindQuality):   quality,
		string(KindTamper):    tamper,
	}
}

func TestComputeWeightsBase(t *testing.T) {
	w := ComputeWeights(scoresFor(0.9, 0.8, 0.8, 0.95))
	if w != baseWeights {
		t.Fatalf("strong signals must keep base weights, got %+v", w)
	}
}

func TestComputeWeightsWeakOCRShiftsToFace(t *testing.T) {
	w := ComputeWeights(scoresFor(0.9, 0.4, 0.8, 0.95))
	want := WeightSet{FaceMatch: 0.50, OCR: 0.20, Quality: 0.20, Tamper: 0.10}
	if w != want {
		t.Fatalf("got %+v, want %+v", w, want)
	}
}

func TestComputeWeightsSuspectedTamperShiftsFromQuality(t *testing.T) {
	w := ComputeWeights(scoresFor(0.9, 0.8, 0.8, 0.6))
	want := WeightSet{FaceMatch: 0.40, OCR: 0.30, Quality: 0.10, Tamper: 0.20}
	if w != want {
		t.Fatalf("got %+v, want %+v", w, want)
	}
}

func TestComputeWeightsBothRules(t *testing.T) {
	w := ComputeWeights(scoresFor(0.9, 0.4, 0.8, 0.6))
	want := WeightSet{FaceMatch: 0.50, OCR: 0.20, Quality: 0.10, Tamper: 0.20}
	if w != want {
		t.Fatalf("got %+v, want %+v", w, want)
	}
}

func TestComputeWeightsMassPreserved(t *testing.T) {
	for _, scores := range []map[string]float64{
		scoresFor(0.9, 0.8, 0.8, 0.95),
		scoresFor(0.9, 0.4, 0.8, 0.95),
		scoresFor(0.9, 0.8, 0.8, 0.6),
		scoresFor(0.9, 0.4, 0.8, 0.6),
		scoresFor(0, 0, 0, 0),
	} {
		if sum := ComputeWeights(scores).Sum(); math.Abs(sum-1.0) > 1e-9 {
			t.Fatalf("scores %v: weight sum %v, want 1.0", scores, sum)
		}
	}
}

func TestWeightSetNormalized(t *testing.T) {
	w := WeightSet{FaceMatch: 1, OCR: 1, Quality: 1, Tamper: 1}.normalized()
	for _, v := range []float64{w.FaceMatch, w.OCR, w.Quality, w.Tamper} {
		if math.Abs(v-0.25) > 1e-9 {
			t.Fatalf("normalized uniform set: got %+v", w)
		}
	}

	zero := WeightSet{}
	if zero.normalized() != zero {
		t.Fatal("zero set must normalize to itself")
	}
}

func TestWeightSetValid(t *testing.T) {
	if !baseWeights.valid() {
		t.Fatal("base weights must be valid")
	}
	if (WeightSet{FaceMatch: -0.1}).valid() {
		t.Fatal("negative weight must be invalid")
	}
	if (WeightSet{FaceMatch: math.NaN()}).valid() {
		t.Fatal("NaN weight must be invalid")
	}
}
