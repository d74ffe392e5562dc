// Package detector defines the boundary to the external model sidecar: the
// raw result shape of each detector and the narrow client interfaces the
// verification flow consumes. Detector failures never cross this boundary as
// errors; they are converted to the documented fallback results.
package detector

import "context"

// FaceMatchResult is the raw outcome of comparing the document photo against
// the selfie.
type FaceMatchResult struct {
	Success            bool    `json:"success"`
	Match              bool    `json:"match"`
	Similarity         float64 `json:"similarity"`
	Distance           float64 `json:"distance"`
	Model              string  `json:"model"`
	NeedsManualReview  bool    `json:"needs_manual_review"`
	Error              string  `json:"error,omitempty"`
}

// OCRResult is the raw outcome of text extraction from the document image.
type OCRResult struct {
	Success           bool              `json:"success"`
	Text              string            `json:"text"`
	Confidence        float64           `json:"confidence"`
	WordCount         int               `json:"word_count"`
	ExtractedFields   map[string]string `json:"extracted_data"`
	NeedsManualReview bool              `json:"needs_manual_review"`
	Error             string            `json:"error,omitempty"`
}

// QualityResult is the raw outcome of the image quality check.
type QualityResult struct {
	Valid          bool    `json:"valid"`
	BlurScore      float64 `json:"blur_score"`
	Brightness     float64 `json:"brightness"`
	IsClear        bool    `json:"is_clear"`
	IsBrightEnough bool    `json:"is_bright_enough"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Error          string  `json:"error,omitempty"`
}

// TamperResult is the raw outcome of the tampering heuristics. Reasons keeps
// detector order; its length drives the severity ladder.
type TamperResult struct {
	Suspicious  bool     `json:"suspicious"`
	Reasons     []string `json:"reasons"`
	NoiseLevel  float64  `json:"noise_level"`
	EdgeDensity float64  `json:"edge_density"`
	Error       string   `json:"error,omitempty"`
}

// FaceMatcher compares the face on the ID document with the selfie.
type FaceMatcher interface {
	CompareFaces(ctx context.Context, idImage, selfie []byte) (*FaceMatchResult, error)
}

// OCREngine extracts text and structured fields from a document image.
type OCREngine interface {
	ExtractText(ctx context.Context, image []byte) (*OCRResult, error)
}

// QualityChecker measures blur, brightness, and dimensions of an image.
type QualityChecker interface {
	CheckQuality(ctx context.Context, image []byte) (*QualityResult, error)
}

// TamperDetector runs tampering heuristics over the document image.
type TamperDetector interface {
	DetectTampering(ctx context.Context, image []byte) (*TamperResult, error)
}

// Client bundles the four detectors exposed by the sidecar.
type Client interface {
	FaceMatcher
	OCREngine
	QualityChecker
	TamperDetector
}
