package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/example/doc-verify/internal/auth"
	"github.com/example/doc-verify/internal/detector"
	"github.com/example/doc-verify/internal/docvalidate"
	"github.com/example/doc-verify/internal/repository"
	"github.com/example/doc-verify/internal/usecase"
	"github.com/example/doc-verify/internal/verify"
)

const testJWTSecret = "test-secret"

type stubService struct {
	verifyErr  error
	outcome    *usecase.Outcome
	result     *repository.DecisionLog
	resultErr  error
	metrics    *usecase.MetricsSummary
	metricsErr error
}

func (s *stubService) VerifyDocument(ctx context.Context, userID string, documentType docvalidate.DocumentType, strategy usecase.Strategy, idImage, selfie []byte) (string, *usecase.Outcome, error) {
	if s.verifyErr != nil {
		return "", nil, s.verifyErr
	}
	return "req-test", s.outcome, nil
}

func (s *stubService) GetResult(ctx context.Context, userID, requestID string) (*repository.DecisionLog, error) {
	if s.resultErr != nil {
		return nil, s.resultErr
	}
	return s.result, nil
}

func (s *stubService) GetDuplicateReport(ctx context.Context, userID, requestID string) (*usecase.DuplicateReport, error) {
	if s.resultErr != nil {
		return nil, s.resultErr
	}
	return &usecase.DuplicateReport{Request: s.result}, nil
}

func (s *stubService) GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error) {
	if s.metricsErr != nil {
		return nil, s.metricsErr
	}
	return s.metrics, nil
}

func (s *stubService) SafeFaceMatch(ctx context.Context, requestID string, idImage, selfie []byte) *detector.FaceMatchResult {
	return &detector.FaceMatchResult{Success: true, Match: true, Similarity: 0.9}
}

func (s *stubService) SafeOCR(ctx context.Context, requestID string, image []byte) *detector.OCRResult {
	return &detector.OCRResult{Success: true, Text: "sample", Confidence: 0.8, WordCount: 1}
}

func verifiedOutcome() *usecase.Outcome {
	return &usecase.Outcome{
		Decision: &verify.Decision{
			RequestID:   "req-test",
			FinalStatus: verify.StatusVerified,
			Verified:    true,
			Confidence:  0.9315,
			RiskLevel:   verify.RiskVeryLow,
			ComponentScores: map[string]float64{
				"face_match": 0.92, "ocr_extraction": 0.9, "image_quality": 0.95, "tampering_check": 0.95,
			},
			Strategy:       "weighted_4_signal",
			ProcessingTime: 420 * time.Millisecond,
		},
		DocumentValidation: docvalidate.Result{Valid: true, Detected: docvalidate.TypeAadhaar},
		DocumentHash:       "abc123",
		Face:               &detector.FaceMatchResult{Success: true, Match: true, Similarity: 0.92},
		OCR:                &detector.OCRResult{Success: true, Text: "Aadhaar", Confidence: 0.85},
		Quality:            &detector.QualityResult{Valid: true},
		Tamper:             &detector.TamperResult{Suspicious: false},
	}
}

func newTestRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	RegisterRoutes(router, svc, auth.JWTMiddleware(testJWTSecret, ""))
	return router
}

func TestVerifyHappyPath(t *testing.T) {
	router := newTestRouter(&stubService{outcome: verifiedOutcome()})

	body, contentType := buildVerifyBody(t, "image/jpeg", []byte("id-bytes"), []byte("selfie-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	// Both naming conventions must appear.
	if payload["finalDecision"] != "verified" || payload["final_status"] != "verified" {
		t.Fatalf("decision aliases: %v / %v", payload["finalDecision"], payload["final_status"])
	}
	if payload["confidence"] != payload["aiConfidence"] {
		t.Fatalf("confidence aliases diverge: %v / %v", payload["confidence"], payload["aiConfidence"])
	}
	if payload["request_id"] != "req-test" {
		t.Fatalf("request_id = %v", payload["request_id"])
	}
	if payload["user_id"] != "user-123" {
		t.Fatalf("user_id = %v", payload["user_id"])
	}
}

func TestVerifyRejectsLargeUpload(t *testing.T) {
	router := newTestRouter(&stubService{outcome: verifiedOutcome()})

	body, contentType := buildVerifyBody(t, "image/png", bytes.Repeat([]byte("a"), MaxUploadSize+1), []byte("selfie"))
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
}

func TestVerifyRejectsUnsupportedContentType(t *testing.T) {
	router := newTestRouter(&stubService{outcome: verifiedOutcome()})

	body, contentType := buildVerifyBody(t, "text/plain", []byte("hello"), []byte("selfie"))
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestVerifyRequiresAuth(t *testing.T) {
	router := newTestRouter(&stubService{outcome: verifiedOutcome()})

	body, contentType := buildVerifyBody(t, "image/jpeg", []byte("id"), []byte("selfie"))
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestVerifyMissingFile(t *testing.T) {
	router := newTestRouter(&stubService{outcome: verifiedOutcome()})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestVerifyPipelineFailureDegradesToManualReview(t *testing.T) {
	router := newTestRouter(&stubService{verifyErr: errors.New("cache unavailable")})

	body, contentType := buildVerifyBody(t, "image/jpeg", []byte("id"), []byte("selfie"))
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("pipeline failure must not surface as an HTTP error, got %d", resp.Code)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload["final_status"] != "manual_review" {
		t.Fatalf("final_status = %v", payload["final_status"])
	}
	if payload["confidence"] != 0.50 {
		t.Fatalf("confidence = %v", payload["confidence"])
	}
}

func TestGetResult(t *testing.T) {
	log := &repository.DecisionLog{RequestID: "req-7", UserID: "user-123", FinalStatus: "verified", Verified: true}
	router := newTestRouter(&stubService{result: log})

	req := httptest.NewRequest(http.MethodGet, "/result/req-7", nil)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload["request_id"] != "req-7" || payload["verified"] != true {
		t.Fatalf("payload = %v", payload)
	}
}

func TestGetResultNotFound(t *testing.T) {
	router := newTestRouter(&stubService{resultErr: errors.New("not found")})

	req := httptest.NewRequest(http.MethodGet, "/result/missing", nil)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, resp.Code)
	}
}

func TestGetMetrics(t *testing.T) {
	router := newTestRouter(&stubService{metrics: &usecase.MetricsSummary{TotalDecisions: 5, VerifiedDecisions: 3, VerificationRate: 0.6}})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var summary usecase.MetricsSummary
	if err := json.Unmarshal(resp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if summary.TotalDecisions != 5 || summary.VerificationRate != 0.6 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestHealthUnauthenticated(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("health must not require auth, got %d", resp.Code)
	}
}

func buildVerifyBody(t *testing.T, contentType string, idImage, selfie []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for field, payload := range map[string][]byte{"id_image": idImage, "selfie": selfie} {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="upload.jpg"`)
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create part %s: %v", field, err)
		}
		if _, err := part.Write(payload); err != nil {
			t.Fatalf("failed to write payload: %v", err)
		}
	}
	if err := writer.WriteField("document_type", "aadhaar"); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	return body, writer.FormDataContentType()
}

func buildTestToken(t *testing.T, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
