package verify

// BasicDecide is the lower-latency decision strategy: three bands on the face
// score alone, with tampering as the only other gate. Callers choose it
// independently of the weighted engine; it reads no adaptive state.
//
// Bands: face >= 0.75 with tamper score < 0.25 verifies; face in [0.6, 0.75)
// goes to manual review; anything else is rejected. Confidence here fuses the
// raw inputs as 0.5*face + 0.3*ocr + 0.2*(1-tamper), where tamper is the
// detector's raw noise indicator rather than the evaluated severity score.
func BasicDecide(requestID string, faceScore, ocrConfidence, tamperScore float64, needsManualReview bool) *Decision {
	confidence := round4(clamp01(
		0.5*faceScore + 0.3*ocrConfidence + 0.2*(1.0-tamperScore)))

	var status Status
	var verified bool
	var risk RiskLevel
	var reasons []string

	switch {
	case needsManualReview:
		status, verified, risk = StatusManualReview, false, RiskMedium
	case faceScore >= 0.75 && tamperScore < 0.25:
		status, verified, risk = StatusVerified, true, RiskLow
	case faceScore >= 0.6 && faceScore < 0.75:
		status, verified, risk = StatusManualReview, false, RiskMedium
	default:
		status, verified, risk = StatusRejected, false, RiskHigh
		if faceScore < 0.6 {
			reasons = append(reasons, "Face similarity below minimum band")
		}
		if tamperScore >= 0.25 {
			reasons = append(reasons, "Tamper indicator above limit")
		}
	}

	return &Decision{
		RequestID:   requestID,
		FinalStatus: status,
		Verified:    verified,
		Confidence:  confidence,
		RiskLevel:   risk,
		ComponentScores: map[string]float64{
			string(KindFaceMatch): round4(faceScore),
			string(KindOCR):       round4(ocrConfidence),
			string(KindTamper):    round4(tamperScore),
		},
		RejectionReasons: reasons,
		Strategy:         strategyFaceBanded,
	}
}
