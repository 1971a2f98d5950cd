package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost || req.URL.Path != "/transcribe/" {
			t.Errorf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		file, header, err := req.FormFile("file")
		if err != nil {
			t.Fatalf("missing file field: %v", err)
		}
		defer file.Close()
		if header.Filename != "media123.ogg" {
			t.Errorf("filename = %q, want %q", header.Filename, "media123.ogg")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job_id": "job-42", "status": "processing"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	jobID, err := c.Submit(context.Background(), []byte("fake audio bytes"), "media123.ogg")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if jobID != "job-42" {
		t.Errorf("jobID = %q, want %q", jobID, "job-42")
	}
}

func TestSubmitMissingJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "processing"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Submit(context.Background(), []byte("audio"), "a.ogg")
	if err == nil {
		t.Fatal("expected an error when the service omits job_id")
	}
	if !strings.Contains(err.Error(), "job_id") {
		t.Errorf("error = %v, want mention of missing job_id", err)
	}
}

func TestSubmitNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Submit(context.Background(), []byte("audio"), "a.ogg")
	if err == nil {
		t.Fatal("expected an error on a 503 response")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %v, want status code in message", err)
	}
}

func TestSubmitUnreachable(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))
	srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Submit(context.Background(), []byte("audio"), "a.ogg")
	if err == nil {
		t.Fatal("expected an error when the backend is unreachable")
	}
}

func TestSubmitNoBaseURL(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.Submit(context.Background(), []byte("audio"), "a.ogg")
	if err == nil {
		t.Fatal("expected an error when the service URL is not configured")
	}
}
