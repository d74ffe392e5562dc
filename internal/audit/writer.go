// Package audit is the append-only event sink for verification decisions.
// Writes are fire-and-forget: a slow or broken sink drops events rather than
// blocking or failing the decision path.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Event is one audit trail record, serialized as a JSON line.
type Event struct {
	Event            string             `json:"event"`
	RequestID        string             `json:"request_id"`
	Verified         bool               `json:"verified"`
	Confidence       float64            `json:"confidence"`
	ComponentScores  map[string]float64 `json:"component_scores,omitempty"`
	RejectionReasons []string           `json:"rejection_reasons,omitempty"`
	ProcessingMs     int64              `json:"processing_ms"`
	Timestamp        string             `json:"timestamp"`
	RecordHash       string             `json:"record_hash"`
}

// FileWriter appends decision events to a size-rotated JSONL file. Events are
// queued to a background goroutine; when the queue is full the event is
// dropped and counted, never blocked on.
type FileWriter struct {
	out    *lumberjack.Logger
	queue  chan Event
	done   chan struct{}
	logger *zap.Logger
	now    func() time.Time
}

// NewFileWriter creates the audit sink writing under dir.
func NewFileWriter(dir string, logger *zap.Logger) *FileWriter {
	w := &FileWriter{
		out: &lumberjack.Logger{
			Filename:   filepath.Join(dir, "decisions.jsonl"),
			MaxSize:    50, // megabytes
			MaxBackups: 10,
			MaxAge:     90, // days, retention for compliance review
			Compress:   true,
		},
		queue:  make(chan Event, 256),
		done:   make(chan struct{}),
		logger: logger.Named("audit"),
		now:    time.Now,
	}
	go w.drain()
	return w
}

// RecordDecision implements the engine's audit sink contract.
func (w *FileWriter) RecordDecision(requestID string, verified bool, confidence float64, componentScores map[string]float64, rejectionReasons []string, processingTime time.Duration) {
	event := Event{
		Event:            "final_decision",
		RequestID:        requestID,
		Verified:         verified,
		Confidence:       confidence,
		ComponentScores:  componentScores,
		RejectionReasons: rejectionReasons,
		ProcessingMs:     processingTime.Milliseconds(),
		Timestamp:        w.now().UTC().Format(time.RFC3339Nano),
	}
	event.RecordHash = hashEvent(event)

	select {
	case w.queue <- event:
	default:
		w.logger.Warn("audit queue full, event dropped", zap.String("request_id", requestID))
	}
}

// Close flushes queued events and stops the background writer.
func (w *FileWriter) Close() error {
	close(w.queue)
	<-w.done
	return w.out.Close()
}

func (w *FileWriter) drain() {
	defer close(w.done)
	for event := range w.queue {
		line, err := json.Marshal(event)
		if err != nil {
			w.logger.Error("failed to encode audit event", zap.Error(err))
			continue
		}
		if _, err := w.out.Write(append(line, '\n')); err != nil {
			w.logger.Error("failed to append audit event", zap.Error(err))
		}
	}
}

// hashEvent computes the integrity hash over the record without its own hash
// field. Marshal ordering is fixed by the struct, so the hash is reproducible.
func hashEvent(event Event) string {
	event.RecordHash = ""
	payload, err := json.Marshal(event)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
