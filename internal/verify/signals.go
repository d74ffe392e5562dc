// Package verify contains the decision-fusion core: signal evaluators, the
// adaptive weight calculator, the two decision strategies, and the adaptive
// threshold state. Nothing in this package returns an error; upstream detector
// failures arrive as data (fallback raw results or success=false) and resolve
// to degraded scores.
package verify

import "time"

// Kind identifies one of the four evidence signals feeding a decision.
type Kind string

const (
	KindFaceMatch Kind = "face_match"
	KindOCR       Kind = "ocr_extraction"
	KindQuality   Kind = "image_quality"
	KindTamper    Kind = "tampering_check"
)

// Status is the terminal verdict of a verification request.
type Status string

const (
	StatusVerified     Status = "verified"
	StatusManualReview Status = "manual_review"
	StatusRejected     Status = "rejected"
)

// RiskLevel grades the residual risk of a decision.
type RiskLevel string

const (
	RiskVeryLow RiskLevel = "very_low"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
)

// EvaluatedSignal is the normalized form of one raw detector result. Score is
// always within [0,1]; a failed detector yields Score 0 and Passed false.
type EvaluatedSignal struct {
	Kind    Kind                   `json:"kind"`
	Passed  bool                   `json:"passed"`
	Score   float64                `json:"score"`
	Label   string                 `json:"label"`
	Message string                 `json:"message"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

// Thresholds snapshots the gate thresholds a decision was made against.
type Thresholds struct {
	FaceMatch float64 `json:"face_match"`
	OCR       float64 `json:"ocr_confidence"`
	Overall   float64 `json:"overall"`
}

// Decision is the terminal artifact of one verification request. It is
// immutable once built and is what the audit trail, the cache, and the caller
// all see.
type Decision struct {
	RequestID        string                   `json:"request_id"`
	FinalStatus      Status                   `json:"final_status"`
	Verified         bool                     `json:"verified"`
	Confidence       float64                  `json:"confidence"`
	RiskLevel        RiskLevel                `json:"risk_level"`
	ComponentScores  map[string]float64       `json:"component_scores"`
	Weights          WeightSet                `json:"weights"`
	Details          map[Kind]EvaluatedSignal `json:"verification_details"`
	Thresholds       Thresholds               `json:"thresholds"`
	RejectionReasons []string                 `json:"rejection_reasons,omitempty"`
	Strategy         string                   `json:"strategy"`
	ProcessingTime   time.Duration            `json:"-"`
}

// FaceScore returns the face-match component score, 0 when absent.
func (d *Decision) FaceScore() float64 {
	return d.ComponentScores[string(KindFaceMatch)]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
