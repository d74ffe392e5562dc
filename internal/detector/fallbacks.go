package detector

// Fallback results substituted at the boundary when a detector errors, times
// out, or reports failure. The constants keep the decision degraded instead of
// aborted: the face fallback lands in the manual-review band, the OCR fallback
// carries middling confidence with no words, and the quality/tamper fallbacks
// are neutral.

// FallbackFaceMatch returns the substitute face result for a failed or
// timed-out face comparison.
func FallbackFaceMatch(reason string) *FaceMatchResult {
	return &FaceMatchResult{
		Success:           true,
		Match:             false,
		Similarity:        0.60,
		Distance:          0.40,
		Model:             "facenet (fallback)",
		NeedsManualReview: true,
		Error:             reason,
	}
}

// FallbackOCR returns the substitute OCR result for a failed or timed-out
// extraction.
func FallbackOCR(reason string) *OCRResult {
	return &OCRResult{
		Success:           true,
		Text:              "",
		Confidence:        0.70,
		WordCount:         0,
		ExtractedFields:   map[string]string{},
		NeedsManualReview: true,
		Error:             reason,
	}
}

// FallbackQuality returns a passable quality result when the checker itself
// failed: mid blur and ideal brightness.
func FallbackQuality(reason string) *QualityResult {
	return &QualityResult{
		Valid:          true,
		BlurScore:      70.0,
		Brightness:     128,
		IsClear:        false,
		IsBrightEnough: true,
		Width:          600,
		Height:         600,
		Error:          reason,
	}
}

// FallbackTamper returns a clean tamper result when the detector itself
// failed.
func FallbackTamper(reason string) *TamperResult {
	return &TamperResult{
		Suspicious:  false,
		Reasons:     []string{},
		NoiseLevel:  0.10,
		EdgeDensity: 0.40,
		Error:       reason,
	}
}
