package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/doc-verify/internal/logging"
)

// HTTPClient talks to the detector sidecar over its multipart HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient builds a sidecar client. The timeout bounds each individual
// detector call; the overall request budget is enforced by the caller's
// context.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("detector"),
	}
}

type filePart struct {
	field string
	data  []byte
}

// CompareFaces implements FaceMatcher.
func (c *HTTPClient) CompareFaces(ctx context.Context, idImage, selfie []byte) (*FaceMatchResult, error) {
	var result FaceMatchResult
	err := c.post(ctx, "/face-match", []filePart{{"image1", idImage}, {"image2", selfie}}, &result)
	if err != nil {
		return nil, logging.NewOperationError("detector.face_match", "", err)
	}
	return &result, nil
}

// ExtractText implements OCREngine.
func (c *HTTPClient) ExtractText(ctx context.Context, image []byte) (*OCRResult, error) {
	var result OCRResult
	err := c.post(ctx, "/ocr", []filePart{{"image", image}}, &result)
	if err != nil {
		return nil, logging.NewOperationError("detector.ocr", "", err)
	}
	return &result, nil
}

// CheckQuality implements QualityChecker.
func (c *HTTPClient) CheckQuality(ctx context.Context, image []byte) (*QualityResult, error) {
	var result QualityResult
	err := c.post(ctx, "/quality", []filePart{{"image", image}}, &result)
	if err != nil {
		return nil, logging.NewOperationError("detector.quality", "", err)
	}
	return &result, nil
}

// DetectTampering implements TamperDetector.
func (c *HTTPClient) DetectTampering(ctx context.Context, image []byte) (*TamperResult, error) {
	var result TamperResult
	err := c.post(ctx, "/tamper", []filePart{{"image", image}}, &result)
	if err != nil {
		return nil, logging.NewOperationError("detector.tamper", "", err)
	}
	return &result, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, parts []filePart, out interface{}) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, part := range parts {
		fw, err := writer.CreateFormFile(part.field, part.field+".jpg")
		if err != nil {
			return err
		}
		if _, err := fw.Write(part.data); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("detector call failed", zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("detector returned non-200",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload))
		return fmt.Errorf("detector %s: status %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
