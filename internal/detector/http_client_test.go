package detector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newSidecar(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(server.URL, time.Second, zap.NewNop()), server
}

func TestCompareFacesSendsBothImages(t *testing.T) {
	client, _ := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/face-match" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		for _, field := range []string{"image1", "image2"} {
			if _, ok := r.MultipartForm.File[field]; !ok {
				t.Errorf("missing part %s", field)
			}
		}
		json.NewEncoder(w).Encode(FaceMatchResult{Success: true, Match: true, Similarity: 0.91, Model: "Facenet"})
	})

	result, err := client.CompareFaces(context.Background(), []byte("id"), []byte("selfie"))
	if err != nil {
		t.Fatalf("CompareFaces: %v", err)
	}
	if !result.Match || result.Similarity != 0.91 {
		t.Fatalf("result = %+v", result)
	}
}

func TestExtractTextDecodesFields(t *testing.T) {
	client, _ := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocr" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(OCRResult{
			Success: true, Text: "Aadhaar 1234", Confidence: 0.82, WordCount: 2,
			ExtractedFields: map[string]string{"number": "1234"},
		})
	})

	result, err := client.ExtractText(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if result.ExtractedFields["number"] != "1234" || result.WordCount != 2 {
		t.Fatalf("result = %+v", result)
	}
}

func TestPostNon200IsAnError(t *testing.T) {
	client, _ := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	if _, err := client.CheckQuality(context.Background(), []byte("img")); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestPostHonorsContext(t *testing.T) {
	client, _ := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can observe the client disconnect;
		// otherwise r.Context() is never cancelled and Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.DetectTampering(ctx, []byte("img")); err == nil {
		t.Fatal("expected context deadline error")
	}
}
