package verify

import (
	"sync"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

const (
	maxHistorySize   = 1000
	recalcEvery      = 100
	minFaceThreshold = 0.65
	maxFaceThreshold = 0.85
	adaptPercentile  = 10
)

// ThresholdState owns the adaptive gate thresholds and the rolling decision
// history they are learned from. One instance lives for the process lifetime
// and is shared by the engine and its callers; create independent instances
// in tests. Thresholds reset to their base values on restart.
//
// Record and the recalculation it triggers are serialized under the write
// lock. Threshold reads take the read lock only, so a concurrent request may
// observe a snapshot that is one recalculation stale; that staleness is
// accepted.
type ThresholdState struct {
	mu sync.RWMutex

	faceThreshold float64
	ocrThreshold  float64
	history       []*Decision
	logger        *zap.Logger
}

// NewThresholdState creates a tracker seeded with the base thresholds.
func NewThresholdState(baseFace, baseOCR float64, logger *zap.Logger) *ThresholdState {
	return &ThresholdState{
		faceThreshold: baseFace,
		ocrThreshold:  baseOCR,
		history:       make([]*Decision, 0, maxHistorySize),
		logger:        logger.Named("thresholds"),
	}
}

// FaceThreshold returns the current adaptive face-match threshold.
func (s *ThresholdState) FaceThreshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.faceThreshold
}

// OCRThreshold returns the OCR confidence threshold. The feedback loop never
// moves it; only the face threshold adapts.
func (s *ThresholdState) OCRThreshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ocrThreshold
}

// HistoryLen returns the number of decisions currently retained.
func (s *ThresholdState) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Record appends a decision to the bounded history, discarding the oldest
// entry on overflow, and recalculates the face threshold whenever the history
// length is an exact multiple of the recalculation interval.
func (s *ThresholdState) Record(d *Decision) {
	if d == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, d)
	if len(s.history) > maxHistorySize {
		s.history = s.history[1:]
	}

	if len(s.history) >= recalcEvery && len(s.history)%recalcEvery == 0 {
		s.recalculate()
	}
}

// recalculate sets the face threshold to the 10th percentile of face scores
// among previously verified decisions, clamped to [0.65, 0.85]. An empty
// verified subset leaves the threshold untouched. Caller must hold the write
// lock.
func (s *ThresholdState) recalculate() {
	scores := make([]float64, 0, len(s.history))
	for _, d := range s.history {
		if d.Verified {
			scores = append(scores, d.FaceScore())
		}
	}
	if len(scores) == 0 {
		s.logger.Info("threshold recalculation skipped: no verified history")
		return
	}

	p10, err := stats.Percentile(scores, adaptPercentile)
	if err != nil {
		s.logger.Warn("percentile computation failed", zap.Error(err))
		return
	}

	next := p10
	if next < minFaceThreshold {
		next = minFaceThreshold
	}
	if next > maxFaceThreshold {
		next = maxFaceThreshold
	}

	if next != s.faceThreshold {
		s.logger.Info("adaptive face threshold updated",
			zap.Float64("previous", s.faceThreshold),
			zap.Float64("current", next),
			zap.Int("verified_samples", len(scores)))
	}
	s.faceThreshold = next
}
