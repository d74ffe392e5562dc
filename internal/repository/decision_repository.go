package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/doc-verify/internal/logging"
)

// DecisionLog is a persisted verification decision.
type DecisionLog struct {
	ID               uint      `gorm:"primaryKey"`
	RequestID        string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID           string    `gorm:"column:user_id;index;size:64"`
	DocumentType     string    `gorm:"column:document_type;size:32"`
	FinalStatus      string    `gorm:"column:final_status;size:16"`
	Verified         bool      `gorm:"column:verified"`
	Confidence       float64   `gorm:"column:confidence"`
	RiskLevel        string    `gorm:"column:risk_level;size:16"`
	FaceScore        float64   `gorm:"column:face_score"`
	OCRScore         float64   `gorm:"column:ocr_score"`
	QualityScore     float64   `gorm:"column:quality_score"`
	TamperScore      float64   `gorm:"column:tamper_score"`
	RejectionReasons string    `gorm:"column:rejection_reasons;type:text"`
	DocumentHash     string    `gorm:"column:document_hash;index;size:64"`
	ProcessingMs     int64     `gorm:"column:processing_ms"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (DecisionLog) TableName() string {
	return "decision_logs"
}

// MetricsAggregation is the raw aggregate used by the metrics summary.
type MetricsAggregation struct {
	TotalCount        int64
	VerifiedCount     int64
	ManualReviewCount int64
	AverageConfidence float64
	AverageLatencyMs  float64
}

// DecisionRepository persists decision logs with retry on transient database
// errors.
type DecisionRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewDecisionRepository creates a repository instance.
func NewDecisionRepository(db *gorm.DB, logger *zap.Logger) *DecisionRepository {
	return &DecisionRepository{
		db:             db,
		logger:         logger.Named("decision_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *DecisionRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&DecisionLog{})
}

// SaveDecision persists a decision log entry.
func (r *DecisionRepository) SaveDecision(ctx context.Context, log *DecisionLog) error {
	return r.executeWithRetry(ctx, "repository.save_decision", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestIDAndUser retrieves a decision matching the request and owner.
func (r *DecisionRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*DecisionLog, error) {
	var log DecisionLog
	err := r.executeWithRetry(ctx, "repository.find_decision", requestID, func() error {
		return r.db.WithContext(ctx).First(&log, "request_id = ? AND user_id = ?", requestID, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// FindDuplicatesByHash retrieves other decisions for the same user that were
// made over an identical document image.
func (r *DecisionRepository) FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*DecisionLog, error) {
	var logs []*DecisionLog
	err := r.executeWithRetry(ctx, "repository.find_duplicates", excludeRequestID, func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND document_hash = ? AND request_id <> ?", userID, hash, excludeRequestID).
			Order("created_at DESC").
			Find(&logs).Error
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// AggregateMetrics computes decision aggregates for the metrics endpoint.
func (r *DecisionRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).Model(&DecisionLog{}).
			Select(
				"COUNT(*) AS total_count",
				"COUNT(*) FILTER (WHERE verified) AS verified_count",
				"COUNT(*) FILTER (WHERE final_status = 'manual_review') AS manual_review_count",
				"COALESCE(AVG(confidence), 0) AS average_confidence",
				"COALESCE(AVG(processing_ms), 0) AS average_latency_ms",
			).
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// executeWithRetry retries fn with doubling backoff on transient errors only.
// The final error is wrapped with operation metadata.
func (r *DecisionRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	if r.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !logging.IsTransient(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}
