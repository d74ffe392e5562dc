package verify

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/doc-verify/internal/detector"
)

const (
	qualityGate        = 0.5
	tamperGate         = 0.7
	confidenceRescue   = 0.75
	overallThreshold   = 0.70
	strategyWeighted   = "weighted_4_signal"
	strategyFaceBanded = "face_banded"
)

// AuditSink receives every decision the engine emits. Implementations must
// not block and must swallow their own failures; the engine treats the write
// as fire-and-forget.
type AuditSink interface {
	RecordDecision(requestID string, verified bool, confidence float64, componentScores map[string]float64, rejectionReasons []string, processingTime time.Duration)
}

// Engine fuses the four evaluated signals into a Decision. It never fails:
// any upstream fault has already been converted to a low-confidence signal
// before it reaches Decide.
type Engine struct {
	thresholds       *ThresholdState
	audit            AuditSink
	logger           *zap.Logger
	normalizeWeights bool
	now              func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuditSink attaches the audit trail writer.
func WithAuditSink(sink AuditSink) Option {
	return func(e *Engine) { e.audit = sink }
}

// WithNormalizedWeights rescales adjusted weights to unit mass before fusion.
// Off by default to match the reference scoring exactly.
func WithNormalizedWeights() Option {
	return func(e *Engine) { e.normalizeWeights = true }
}

// NewEngine builds a decision engine around shared threshold state.
func NewEngine(thresholds *ThresholdState, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		thresholds: thresholds,
		logger:     logger.Named("decision_engine"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateAndDecide normalizes the four raw detector results and runs the
// weighted decision algorithm. It records the decision with the threshold
// tracker and the audit sink before returning.
func (e *Engine) EvaluateAndDecide(requestID string, face *detector.FaceMatchResult, ocr *detector.OCRResult, quality *detector.QualityResult, tamper *detector.TamperResult) *Decision {
	start := e.now()

	faceThreshold := e.thresholds.FaceThreshold()
	ocrThreshold := e.thresholds.OCRThreshold()

	evaluated := map[Kind]EvaluatedSignal{
		KindFaceMatch: EvaluateFaceMatch(face, faceThreshold),
		KindOCR:       EvaluateOCR(ocr, ocrThreshold),
		KindQuality:   EvaluateQuality(quality),
		KindTamper:    EvaluateTamper(tamper),
	}

	needsManualReview := (face != nil && face.NeedsManualReview) ||
		(ocr != nil && ocr.NeedsManualReview)

	decision := e.decide(requestID, evaluated, needsManualReview, faceThreshold, ocrThreshold)
	decision.ProcessingTime = e.now().Sub(start)

	e.thresholds.Record(decision)
	if e.audit != nil {
		e.audit.RecordDecision(decision.RequestID, decision.Verified, decision.Confidence,
			decision.ComponentScores, decision.RejectionReasons, decision.ProcessingTime)
	}

	e.logger.Info("decision",
		zap.String("request_id", requestID),
		zap.String("status", string(decision.FinalStatus)),
		zap.Float64("confidence", decision.Confidence),
		zap.String("risk_level", string(decision.RiskLevel)))

	return decision
}

// decide runs the gate and fusion logic over already-evaluated signals.
func (e *Engine) decide(requestID string, evaluated map[Kind]EvaluatedSignal, needsManualReview bool, faceThreshold, ocrThreshold float64) *Decision {
	scores := map[string]float64{
		string(KindFaceMatch): evaluated[KindFaceMatch].Score,
		string(KindOCR):       evaluated[KindOCR].Score,
		string(KindQuality):   evaluated[KindQuality].Score,
		string(KindTamper):    evaluated[KindTamper].Score,
	}

	weights := ComputeWeights(scores)
	if !weights.valid() {
		e.logger.Warn("weight adjustment left range, clamping",
			zap.String("request_id", requestID),
			zap.Float64("sum", weights.Sum()))
		weights = weights.clamped()
	}
	if e.normalizeWeights {
		weights = weights.normalized()
	}

	confidence := clamp01(
		scores[string(KindFaceMatch)]*weights.FaceMatch +
			scores[string(KindOCR)]*weights.OCR +
			scores[string(KindQuality)]*weights.Quality +
			scores[string(KindTamper)]*weights.Tamper)
	confidence = round4(confidence)

	facePassed := evaluated[KindFaceMatch].Passed
	ocrPassed := evaluated[KindOCR].Passed
	qualityPassed := evaluated[KindQuality].Score >= qualityGate
	tamperPassed := evaluated[KindTamper].Score >= tamperGate

	var criticalFailures []string
	if !facePassed {
		criticalFailures = append(criticalFailures, "face_match_below_threshold")
	}
	if !tamperPassed {
		criticalFailures = append(criticalFailures, "tampering_suspected")
	}

	var status Status
	var verified bool
	switch {
	case needsManualReview:
		// Upstream fallback condition outranks every score-based rule.
		status, verified = StatusManualReview, false
	case len(criticalFailures) > 0:
		status, verified = StatusRejected, false
	case facePassed && ocrPassed && qualityPassed && tamperPassed:
		status, verified = StatusVerified, true
	case confidence >= confidenceRescue:
		// A non-critical gate failed but overall confidence rescues it.
		status, verified = StatusVerified, true
	default:
		status, verified = StatusRejected, false
	}

	var reasons []string
	if status != StatusManualReview {
		if !facePassed {
			reasons = append(reasons, fmt.Sprintf("Face similarity %.0f%% below threshold %.0f%%",
				scores[string(KindFaceMatch)]*100, faceThreshold*100))
		}
		if !ocrPassed {
			reasons = append(reasons, fmt.Sprintf("OCR confidence %.0f%% below threshold %.0f%%",
				scores[string(KindOCR)]*100, ocrThreshold*100))
		}
		if !qualityPassed {
			reasons = append(reasons, "Image quality insufficient")
		}
		if !tamperPassed {
			reasons = append(reasons, "Document tampering suspected")
		}
	}
	if verified {
		reasons = nil
	}

	risk := riskLevel(confidence, len(criticalFailures) > 0)
	if status == StatusManualReview {
		risk = RiskMedium
	}

	return &Decision{
		RequestID:        requestID,
		FinalStatus:      status,
		Verified:         verified,
		Confidence:       confidence,
		RiskLevel:        risk,
		ComponentScores:  scores,
		Weights:          weights,
		Details:          evaluated,
		Thresholds:       Thresholds{FaceMatch: faceThreshold, OCR: ocrThreshold, Overall: overallThreshold},
		RejectionReasons: reasons,
		Strategy:         strategyWeighted,
	}
}

// riskLevel grades residual risk: any critical failure is high risk outright,
// otherwise the confidence bands decide.
func riskLevel(confidence float64, critical bool) RiskLevel {
	switch {
	case critical:
		return RiskHigh
	case confidence >= 0.90:
		return RiskVeryLow
	case confidence >= 0.80:
		return RiskLow
	case confidence >= 0.70:
		return RiskMedium
	default:
		return RiskHigh
	}
}
