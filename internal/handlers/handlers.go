package handlers

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/doc-verify/internal/auth"
	"github.com/example/doc-verify/internal/detector"
	"github.com/example/doc-verify/internal/docvalidate"
	"github.com/example/doc-verify/internal/repository"
	"github.com/example/doc-verify/internal/usecase"
)

// MaxUploadSize bounds each uploaded image.
const MaxUploadSize = 10 << 20 // 10 MiB

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// Service is the slice of the verification use case the HTTP layer needs.
type Service interface {
	VerifyDocument(ctx context.Context, userID string, documentType docvalidate.DocumentType, strategy usecase.Strategy, idImage, selfie []byte) (string, *usecase.Outcome, error)
	GetResult(ctx context.Context, userID, requestID string) (*repository.DecisionLog, error)
	GetDuplicateReport(ctx context.Context, userID, requestID string) (*usecase.DuplicateReport, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
	SafeFaceMatch(ctx context.Context, requestID string, idImage, selfie []byte) *detector.FaceMatchResult
	SafeOCR(ctx context.Context, requestID string, image []byte) *detector.OCRResult
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc Service, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})

	protected := router.Group("/", authMiddleware)

	protected.POST("/verify", func(c *gin.Context) { handleVerify(c, svc) })

	protected.GET("/result/:id", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		requestID := c.Param("id")
		log, err := svc.GetResult(c.Request.Context(), userID, requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}
		c.JSON(http.StatusOK, decisionLogResponse(log))
	})

	protected.GET("/result/:id/duplicates", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		report, err := svc.GetDuplicateReport(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}
		duplicates := make([]gin.H, 0, len(report.Duplicates))
		for _, dup := range report.Duplicates {
			duplicates = append(duplicates, decisionLogResponse(dup))
		}
		c.JSON(http.StatusOK, gin.H{
			"request":    decisionLogResponse(report.Request),
			"duplicates": duplicates,
		})
	})

	protected.GET("/metrics", func(c *gin.Context) {
		summary, err := svc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "metrics unavailable"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	protected.POST("/face-match", func(c *gin.Context) {
		img1, ok := readUpload(c, "image1")
		if !ok {
			return
		}
		img2, ok := readUpload(c, "image2")
		if !ok {
			return
		}
		result := svc.SafeFaceMatch(c.Request.Context(), "", img1, img2)
		c.JSON(http.StatusOK, gin.H{
			"success":    result.Success,
			"match":      result.Match,
			"similarity": result.Similarity,
			"distance":   result.Distance,
			"model":      result.Model,
			"error":      result.Error,
		})
	})

	protected.POST("/ocr", func(c *gin.Context) {
		img, ok := readUpload(c, "image")
		if !ok {
			return
		}
		result := svc.SafeOCR(c.Request.Context(), "", img)
		c.JSON(http.StatusOK, gin.H{
			"success":        result.Success,
			"text":           result.Text,
			"confidence":     result.Confidence,
			"word_count":     result.WordCount,
			"extracted_data": result.ExtractedFields,
			"error":          result.Error,
		})
	})
}

func handleVerify(c *gin.Context, svc Service) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		userID = c.PostForm("user_id")
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user identity required"})
		return
	}

	documentType := docvalidate.DocumentType(c.DefaultPostForm("document_type", string(docvalidate.TypeNationalID)))
	strategy := usecase.Strategy(c.DefaultPostForm("strategy", string(usecase.StrategyWeighted)))

	idImage, ok := readUpload(c, "id_image")
	if !ok {
		return
	}
	selfie, ok := readUpload(c, "selfie")
	if !ok {
		return
	}

	start := time.Now()
	requestID, outcome, err := svc.VerifyDocument(c.Request.Context(), userID, documentType, strategy, idImage, selfie)
	if err != nil {
		// A broken pipeline surfaces as a manual-review outcome for this
		// request only, never a hard failure toward the caller.
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"status":        "manual_review",
			"finalDecision": "manual_review",
			"final_status":  "manual_review",
			"verified":      false,
			"confidence":    0.50,
			"aiConfidence":  0.50,
			"risk_level":    "medium",
			"timeTaken":     time.Since(start).Seconds(),
			"error_handled": true,
			"message":       "verification requires manual review due to a processing issue",
		})
		return
	}

	c.JSON(http.StatusOK, verifyResponse(requestID, userID, documentType, outcome))
}

// readUpload pulls one multipart file, enforcing size and content-type limits.
func readUpload(c *gin.Context, field string) ([]byte, bool) {
	file, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return nil, false
	}
	if file.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": field + " exceeds upload limit"})
		return nil, false
	}
	if contentType := partContentType(file); contentType != "" && !allowedContentTypes[contentType] {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": field + " must be JPEG or PNG"})
		return nil, false
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open " + field})
		return nil, false
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read " + field})
		return nil, false
	}
	if len(data) > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": field + " exceeds upload limit"})
		return nil, false
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " is empty"})
		return nil, false
	}
	return data, true
}

func partContentType(file *multipart.FileHeader) string {
	if file.Header == nil {
		return ""
	}
	return file.Header.Get("Content-Type")
}

// verifyResponse serializes the decision with both snake_case and camelCase
// aliases; downstream consumers read either convention.
func verifyResponse(requestID, userID string, documentType docvalidate.DocumentType, outcome *usecase.Outcome) gin.H {
	decision := outcome.Decision
	status := string(decision.FinalStatus)

	faceScore := decision.ComponentScores["face_match"]
	ocrScore := decision.ComponentScores["ocr_extraction"]
	tamperScore := decision.ComponentScores["tampering_check"]

	return gin.H{
		"success":       true,
		"status":        "completed",
		"request_id":    requestID,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"user_id":       userID,
		"document_type": string(documentType),

		"finalDecision": status,
		"final_status":  status,
		"verified":      decision.Verified,
		"confidence":    decision.Confidence,
		"aiConfidence":  decision.Confidence,
		"risk_level":    string(decision.RiskLevel),

		"faceMatchScore":      faceScore,
		"face_match":          faceScore,
		"face_match_verified": outcome.Face.Match,

		"ocrConfidence":  ocrScore,
		"ocr_confidence": ocrScore,
		"ocr_text":       outcome.OCR.Text,
		"extracted_data": outcome.OCR.ExtractedFields,

		"tamperDetection":      tamperScore,
		"document_validity":    !outcome.Tamper.Suspicious,
		"image_quality_passed": outcome.Quality.Valid,

		"document_validation": outcome.DocumentValidation,
		"document_hash":       outcome.DocumentHash,

		"component_scores":  decision.ComponentScores,
		"adaptive_weights":  decision.Weights,
		"thresholds":        decision.Thresholds,
		"rejection_reasons": decision.RejectionReasons,
		"strategy":          decision.Strategy,

		"timeTaken":                     decision.ProcessingTime.Seconds(),
		"total_processing_time_seconds": decision.ProcessingTime.Seconds(),
		"processing_complete":           true,
	}
}

func decisionLogResponse(log *repository.DecisionLog) gin.H {
	return gin.H{
		"request_id":        log.RequestID,
		"user_id":           log.UserID,
		"document_type":     log.DocumentType,
		"final_status":      log.FinalStatus,
		"verified":          log.Verified,
		"confidence":        log.Confidence,
		"risk_level":        log.RiskLevel,
		"face_score":        log.FaceScore,
		"ocr_score":         log.OCRScore,
		"quality_score":     log.QualityScore,
		"tamper_score":      log.TamperScore,
		"rejection_reasons": log.RejectionReasons,
		"document_hash":     log.DocumentHash,
		"processing_ms":     log.ProcessingMs,
		"created_at":        log.CreatedAt,
	}
}
