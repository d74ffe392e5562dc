package verify

import (
	"math"

	"github.com/example/doc-verify/internal/detector"
)

// Signal evaluators normalize raw detector results into EvaluatedSignals.
// Each is a pure function: it never fails, and every missing or failed branch
// maps to a deterministic fallback score.

// faceLabel buckets a similarity score into the five confidence labels.
func faceLabel(similarity float64) string {
	switch {
	case similarity >= 0.90:
		return "very_high"
	case similarity >= 0.80:
		return "high"
	case similarity >= 0.70:
		return "medium"
	case similarity >= 0.60:
		return "low"
	default:
		return "very_low"
	}
}

// EvaluateFaceMatch normalizes a face comparison result against the current
// face threshold.
func EvaluateFaceMatch(raw *detector.FaceMatchResult, faceThreshold float64) EvaluatedSignal {
	if raw == nil || !raw.Success {
		message := "face matching failed"
		if raw != nil && raw.Error != "" {
			message = raw.Error
		}
		return EvaluatedSignal{
			Kind:    KindFaceMatch,
			Passed:  false,
			Score:   0.0,
			Label:   "very_low",
			Message: message,
		}
	}

	similarity := clamp01(raw.Similarity)
	label := faceLabel(similarity)
	passed := similarity >= faceThreshold

	message := "face similarity below threshold"
	if passed {
		message = "face match " + label + " confidence"
	}
	return EvaluatedSignal{
		Kind:    KindFaceMatch,
		Passed:  passed,
		Score:   similarity,
		Label:   label,
		Message: message,
		Detail: map[string]interface{}{
			"similarity": similarity,
			"distance":   raw.Distance,
			"model":      raw.Model,
			"match":      raw.Match,
		},
	}
}

// EvaluateOCR normalizes an OCR result. Each structured field parsed earns a
// 5-point bonus on the base confidence, capped at 1.0. Passing additionally
// requires more than 5 extracted words.
func EvaluateOCR(raw *detector.OCRResult, ocrThreshold float64) EvaluatedSignal {
	if raw == nil || !raw.Success {
		message := "ocr extraction failed"
		if raw != nil && raw.Error != "" {
			message = raw.Error
		}
		return EvaluatedSignal{
			Kind:    KindOCR,
			Passed:  false,
			Score:   0.0,
			Label:   "failed",
			Message: message,
		}
	}

	bonus := float64(len(raw.ExtractedFields)) * 0.05
	adjusted := math.Min(1.0, clamp01(raw.Confidence)+bonus)
	passed := adjusted >= ocrThreshold && raw.WordCount > 5

	message := "ocr quality insufficient"
	if passed {
		message = "ocr successful"
	}
	fields := make([]string, 0, len(raw.ExtractedFields))
	for name := range raw.ExtractedFields {
		fields = append(fields, name)
	}
	return EvaluatedSignal{
		Kind:    KindOCR,
		Passed:  passed,
		Score:   adjusted,
		Label:   "extracted",
		Message: message,
		Detail: map[string]interface{}{
			"base_confidence":   raw.Confidence,
			"structured_bonus":  bonus,
			"word_count":        raw.WordCount,
			"structured_fields": fields,
		},
	}
}

// EvaluateQuality normalizes an image quality result. Clarity saturates at a
// blur score of 200 and brightness peaks at 128, decaying linearly toward the
// extremes; the combined score weighs clarity 60/40 over brightness.
func EvaluateQuality(raw *detector.QualityResult) EvaluatedSignal {
	if raw == nil || !raw.Valid {
		message := "quality check failed"
		if raw != nil && raw.Error != "" {
			message = raw.Error
		}
		return EvaluatedSignal{
			Kind:    KindQuality,
			Passed:  false,
			Score:   0.0,
			Label:   "invalid",
			Message: message,
		}
	}

	clarity := 0.0
	if raw.BlurScore > 0 {
		clarity = math.Min(1.0, raw.BlurScore/200)
	}
	brightness := 1.0 - math.Abs(raw.Brightness-128)/128
	score := clamp01(clarity*0.6 + brightness*0.4)
	passed := raw.IsClear && raw.IsBrightEnough

	message := "image quality issues"
	if passed {
		message = "image quality acceptable"
	}
	return EvaluatedSignal{
		Kind:    KindQuality,
		Passed:  passed,
		Score:   score,
		Label:   "measured",
		Message: message,
		Detail: map[string]interface{}{
			"blur_score":       raw.BlurScore,
			"brightness":       raw.Brightness,
			"is_clear":         raw.IsClear,
			"is_bright_enough": raw.IsBrightEnough,
			"width":            raw.Width,
			"height":           raw.Height,
		},
	}
}

// EvaluateTamper normalizes a tampering result through the severity ladder:
// the more independent indicators fired, the lower the score.
func EvaluateTamper(raw *detector.TamperResult) EvaluatedSignal {
	suspicious := false
	var reasons []string
	var noise, edges float64
	if raw != nil {
		suspicious = raw.Suspicious
		reasons = raw.Reasons
		noise = raw.NoiseLevel
		edges = raw.EdgeDensity
	}

	var severity string
	var score float64
	switch {
	case !suspicious:
		severity, score = "none", 0.95
	case len(reasons) == 1:
		severity, score = "low", 0.6
	case len(reasons) == 2:
		severity, score = "medium", 0.4
	default:
		severity, score = "high", 0.2
	}

	message := "no tampering detected"
	if suspicious {
		message = "tampering " + severity
	}
	return EvaluatedSignal{
		Kind:    KindTamper,
		Passed:  !suspicious,
		Score:   score,
		Label:   severity,
		Message: message,
		Detail: map[string]interface{}{
			"suspicious":       suspicious,
			"reasons":          reasons,
			"indicators_count": len(reasons),
			"noise_level":      noise,
			"edge_density":     edges,
		},
	}
}
