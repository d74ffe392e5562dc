package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/doc-verify/internal/detector"
	"github.com/example/doc-verify/internal/docvalidate"
	"github.com/example/doc-verify/internal/logging"
	"github.com/example/doc-verify/internal/repository"
	"github.com/example/doc-verify/internal/verify"
)

// Strategy selects the decision algorithm for a request.
type Strategy string

const (
	// StrategyWeighted is the default 4-signal weighted engine.
	StrategyWeighted Strategy = "weighted"
	// StrategyBasic is the lower-latency face-banded variant.
	StrategyBasic Strategy = "basic"
)

// DecisionRepository defines the persistence operations needed by the use case.
type DecisionRepository interface {
	SaveDecision(ctx context.Context, log *repository.DecisionLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.DecisionLog, error)
	FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*repository.DecisionLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// VerificationUseCase orchestrates detector calls, the decision engine,
// caching, and persistence for the verification flow.
type VerificationUseCase struct {
	repo           DecisionRepository
	cache          Cache
	detectors      detector.Client
	engine         *verify.Engine
	logger         *zap.Logger
	budget         time.Duration
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Outcome bundles everything the handler returns for one verification.
type Outcome struct {
	Decision           *verify.Decision
	DocumentValidation docvalidate.Result
	DocumentHash       string
	Face               *detector.FaceMatchResult
	OCR                *detector.OCRResult
	Quality            *detector.QualityResult
	Tamper             *detector.TamperResult
}

// DuplicateReport lists prior decisions made over an identical document image.
type DuplicateReport struct {
	Request    *repository.DecisionLog
	Duplicates []*repository.DecisionLog
}

// NewVerificationUseCase constructs a new use case instance.
func NewVerificationUseCase(repo DecisionRepository, cache Cache, detectors detector.Client, engine *verify.Engine, budget time.Duration, logger *zap.Logger) *VerificationUseCase {
	return &VerificationUseCase{
		repo:           repo,
		cache:          cache,
		detectors:      detectors,
		engine:         engine,
		logger:         logger.Named("verification_usecase"),
		budget:         budget,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// VerifyDocument runs the full pipeline: mark the request as processing, fan
// the four detectors out concurrently under the wall-clock budget, fuse the
// signals into a decision, persist it, and cache the result. Detector
// failures and timeouts degrade to their documented fallbacks; only cache and
// persistence faults surface as errors.
func (uc *VerificationUseCase) VerifyDocument(ctx context.Context, userID string, documentType docvalidate.DocumentType, strategy Strategy, idImage, selfie []byte) (string, *Outcome, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.verify_document", requestID)

	cacheKey := fmt.Sprintf("decision:%s", requestID)
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, cacheKey, "processing", time.Minute)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return "", nil, err
	}

	hash := sha256.Sum256(idImage)
	documentHash := hex.EncodeToString(hash[:])

	face, ocr, quality, tamper := uc.collectSignals(ctx, requestID, idImage, selfie)

	faceDetected := face.Success && !face.NeedsManualReview
	docValidation := docvalidate.Validate(ocr.Text, documentType, faceDetected)

	var decision *verify.Decision
	if strategy == StrategyBasic {
		needsManualReview := face.NeedsManualReview || ocr.NeedsManualReview
		decision = verify.BasicDecide(requestID, face.Similarity, ocr.Confidence, tamper.NoiseLevel, needsManualReview)
	} else {
		decision = uc.engine.EvaluateAndDecide(requestID, face, ocr, quality, tamper)
	}

	if docValidation.TypeMismatch && decision.FinalStatus != verify.StatusVerified {
		decision.RejectionReasons = append(decision.RejectionReasons, docValidation.Issues...)
	}

	log := decisionToLog(decision, userID, string(documentType), documentHash)
	if err := uc.repo.SaveDecision(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_decision", requestID, err)
		opLogger.Error("failed to persist decision", zap.Error(wrapped))
		return "", nil, wrapped
	}

	serialized, err := json.Marshal(log)
	if err != nil {
		opLogger.Error("failed to serialize decision", zap.Error(err))
		return "", nil, err
	}
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey, string(serialized), 5*time.Minute)
	}); err != nil {
		opLogger.Error("failed to cache decision", zap.Error(err))
		return "", nil, err
	}

	return requestID, &Outcome{
		Decision:           decision,
		DocumentValidation: docValidation,
		DocumentHash:       documentHash,
		Face:               face,
		OCR:                ocr,
		Quality:            quality,
		Tamper:             tamper,
	}, nil
}

// collectSignals runs the four detectors concurrently under the request
// budget. Every failure path substitutes the documented fallback raw result,
// so all four results are always non-nil.
func (uc *VerificationUseCase) collectSignals(ctx context.Context, requestID string, idImage, selfie []byte) (*detector.FaceMatchResult, *detector.OCRResult, *detector.QualityResult, *detector.TamperResult) {
	budgetCtx, cancel := context.WithTimeout(ctx, uc.budget)
	defer cancel()

	var (
		face    *detector.FaceMatchResult
		ocr     *detector.OCRResult
		quality *detector.QualityResult
		tamper  *detector.TamperResult
	)

	g, gctx := errgroup.WithContext(budgetCtx)
	g.Go(func() error {
		face = uc.SafeFaceMatch(gctx, requestID, idImage, selfie)
		return nil
	})
	g.Go(func() error {
		ocr = uc.SafeOCR(gctx, requestID, idImage)
		return nil
	})
	g.Go(func() error {
		quality = uc.SafeQualityCheck(gctx, requestID, idImage)
		return nil
	})
	g.Go(func() error {
		tamper = uc.SafeTamperCheck(gctx, requestID, idImage)
		return nil
	})
	_ = g.Wait()

	return face, ocr, quality, tamper
}

// SafeFaceMatch invokes the face matcher, substituting the manual-review
// fallback on error, timeout, or an unsuccessful comparison.
func (uc *VerificationUseCase) SafeFaceMatch(ctx context.Context, requestID string, idImage, selfie []byte) *detector.FaceMatchResult {
	result, err := uc.detectors.CompareFaces(ctx, idImage, selfie)
	if err != nil {
		logging.WithOperation(uc.logger, "detector.face_match", requestID).
			Warn("face match unavailable, using fallback", zap.Error(err))
		return detector.FallbackFaceMatch(err.Error())
	}
	if !result.Success {
		logging.WithOperation(uc.logger, "detector.face_match", requestID).
			Warn("face not detected, using fallback", zap.String("detail", result.Error))
		return detector.FallbackFaceMatch(result.Error)
	}
	return result
}

// SafeOCR invokes the OCR engine, substituting the fallback on error,
// timeout, or a failed extraction.
func (uc *VerificationUseCase) SafeOCR(ctx context.Context, requestID string, image []byte) *detector.OCRResult {
	result, err := uc.detectors.ExtractText(ctx, image)
	if err != nil {
		logging.WithOperation(uc.logger, "detector.ocr", requestID).
			Warn("ocr unavailable, using fallback", zap.Error(err))
		return detector.FallbackOCR(err.Error())
	}
	if !result.Success {
		logging.WithOperation(uc.logger, "detector.ocr", requestID).
			Warn("ocr failed, using fallback", zap.String("detail", result.Error))
		return detector.FallbackOCR(result.Error)
	}
	return result
}

// SafeQualityCheck invokes the quality checker, substituting a neutral
// fallback when the checker itself fails or reports an unreadable image.
func (uc *VerificationUseCase) SafeQualityCheck(ctx context.Context, requestID string, image []byte) *detector.QualityResult {
	result, err := uc.detectors.CheckQuality(ctx, image)
	if err != nil {
		logging.WithOperation(uc.logger, "detector.quality", requestID).
			Warn("quality check unavailable, using fallback", zap.Error(err))
		return detector.FallbackQuality(err.Error())
	}
	if !result.Valid {
		return detector.FallbackQuality(result.Error)
	}
	return result
}

// SafeTamperCheck invokes the tamper detector, substituting a clean fallback
// when the detector itself fails.
func (uc *VerificationUseCase) SafeTamperCheck(ctx context.Context, requestID string, image []byte) *detector.TamperResult {
	result, err := uc.detectors.DetectTampering(ctx, image)
	if err != nil {
		logging.WithOperation(uc.logger, "detector.tamper", requestID).
			Warn("tamper check unavailable, using fallback", zap.Error(err))
		return detector.FallbackTamper(err.Error())
	}
	return result
}

// GetResult retrieves a cached decision or loads it from persistence.
func (uc *VerificationUseCase) GetResult(ctx context.Context, userID, requestID string) (*repository.DecisionLog, error) {
	cacheKey := fmt.Sprintf("decision:%s", requestID)
	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", cacheKey); err == nil {
		var log repository.DecisionLog
		if unmarshalErr := json.Unmarshal([]byte(cached), &log); unmarshalErr != nil {
			// "processing" marker or corrupt payload; fall through to the database.
			logging.WithOperation(uc.logger, "usecase.get_result", requestID).
				Debug("cached payload not a decision", zap.Error(unmarshalErr))
		} else if log.RequestID == requestID && log.UserID == userID {
			return &log, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).
			Warn("failed to read cache", zap.Error(err))
	}

	return uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
}

// GetDuplicateReport builds a duplicate-document report for a request.
func (uc *VerificationUseCase) GetDuplicateReport(ctx context.Context, userID, requestID string) (*DuplicateReport, error) {
	log, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, userID, log.DocumentHash, log.RequestID)
	if err != nil {
		return nil, err
	}

	return &DuplicateReport{Request: log, Duplicates: duplicates}, nil
}

func decisionToLog(d *verify.Decision, userID, documentType, documentHash string) *repository.DecisionLog {
	return &repository.DecisionLog{
		RequestID:        d.RequestID,
		UserID:           userID,
		DocumentType:     documentType,
		FinalStatus:      string(d.FinalStatus),
		Verified:         d.Verified,
		Confidence:       d.Confidence,
		RiskLevel:        string(d.RiskLevel),
		FaceScore:        d.ComponentScores[string(verify.KindFaceMatch)],
		OCRScore:         d.ComponentScores[string(verify.KindOCR)],
		QualityScore:     d.ComponentScores[string(verify.KindQuality)],
		TamperScore:      d.ComponentScores[string(verify.KindTamper)],
		RejectionReasons: strings.Join(d.RejectionReasons, "; "),
		DocumentHash:     documentHash,
		ProcessingMs:     d.ProcessingTime.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
}

func (uc *VerificationUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !logging.IsTransient(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *VerificationUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
