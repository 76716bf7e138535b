package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adythan1/Tax-Returns/config"
	"github.com/adythan1/Tax-Returns/service"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
}

type submitResponseBody struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Reason        string `json:"reason"`
	Stage         string `json:"stage"`
	FilesUploaded int    `json:"filesUploaded"`
	FolderPath    string `json:"folderPath"`
	FolderLink    string `json:"folderLink"`
	Skipped       []struct {
		FileName string `json:"fileName"`
		Reason   string `json:"reason"`
	} `json:"skipped"`
	Missing []string `json:"missing"`
}

func TestIntakeHandlerSubmit(t *testing.T) {
	app := newTestApp()
	handler := NewIntakeHandler(app.intake, &config.IntakeConfig{Mode: config.ModeSync})

	tests := []struct {
		name           string
		fields         map[string]string
		files          []formFile
		expectedStatus int
		expectedFiles  int
		expectedReason string
	}{
		{
			name:   "two documents",
			fields: janeFields(),
			files: []formFile{
				{"w2", "w2.pdf", "application/pdf", pdfBytes},
				{"form1099", "1099.pdf", "application/pdf", pdfBytes},
			},
			expectedStatus: http.StatusOK,
			expectedFiles:  2,
		},
		{
			name:           "no documents",
			fields:         janeFields(),
			expectedStatus: http.StatusOK,
			expectedFiles:  0,
		},
		{
			name:   "rejected document is skipped",
			fields: janeFields(),
			files: []formFile{
				{"other", "run.exe", "application/octet-stream", []byte("MZ\x90\x00")},
				{"w2", "w2.pdf", "application/pdf", pdfBytes},
			},
			expectedStatus: http.StatusOK,
			expectedFiles:  1,
		},
		{
			name:           "missing email",
			fields:         map[string]string{"firstName": "Jane", "lastName": "Doe"},
			expectedStatus: http.StatusBadRequest,
			expectedReason: "validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/api/submit-portal", handler.Submit)

			body, contentType := multipartBody(t, tt.fields, tt.files...)
			req := httptest.NewRequest("POST", "/api/submit-portal", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)
			app.dispatcher.Wait()

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}

			var resp submitResponseBody
			decode(t, w, &resp)
			if tt.expectedStatus != http.StatusOK {
				if resp.Success {
					t.Error("Expected success false")
				}
				if resp.Reason != tt.expectedReason {
					t.Errorf("Expected reason %q, got %q", tt.expectedReason, resp.Reason)
				}
				return
			}
			if !resp.Success {
				t.Error("Expected success true")
			}
			if resp.FilesUploaded != tt.expectedFiles {
				t.Errorf("Expected %d files uploaded, got %d", tt.expectedFiles, resp.FilesUploaded)
			}
			if !strings.HasSuffix(resp.FolderPath, "_Jane_Doe") {
				t.Errorf("Unexpected folder %q", resp.FolderPath)
			}
			if resp.FolderLink == "" {
				t.Error("Expected folder link")
			}
		})
	}
}

func TestIntakeHandlerValidationHasNoSideEffects(t *testing.T) {
	app := newTestApp()
	router := gin.New()
	router.POST("/submit", NewIntakeHandler(app.intake, &config.IntakeConfig{Mode: config.ModeSync}).Submit)

	body, contentType := multipartBody(t, map[string]string{"lastName": "Doe"},
		formFile{"w2", "w2.pdf", "application/pdf", pdfBytes})
	req := httptest.NewRequest("POST", "/submit", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp submitResponseBody
	decode(t, w, &resp)
	if len(resp.Missing) != 2 || resp.Missing[0] != "firstName" || resp.Missing[1] != "email" {
		t.Errorf("Unexpected missing fields %v", resp.Missing)
	}
	if app.backend.Count() != 0 {
		t.Errorf("Expected no containers, got %d", app.backend.Count())
	}
}

func TestIntakeHandlerSSNAlias(t *testing.T) {
	app := newTestApp()
	folder := app.seed(t, janeFields())

	sub, err := app.admin.Get(context.Background(), folder)
	if err != nil {
		t.Fatalf("Failed to load submission: %v", err)
	}
	if sub.TaxID != "123-45-6789" {
		t.Errorf("Expected ssn to be stored as taxId, got %q", sub.TaxID)
	}
}

func TestIntakeHandlerNotMultipart(t *testing.T) {
	app := newTestApp()
	router := gin.New()
	router.POST("/submit", NewIntakeHandler(app.intake, &config.IntakeConfig{Mode: config.ModeSync}).Submit)

	req := httptest.NewRequest("POST", "/submit", strings.NewReader(`{"firstName":"Jane"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	var resp submitResponseBody
	decode(t, w, &resp)
	if resp.Reason != "validation" {
		t.Errorf("Expected reason validation, got %q", resp.Reason)
	}
	if len(resp.Missing) != 3 {
		t.Errorf("Expected 3 missing fields, got %v", resp.Missing)
	}
}

func TestIntakeHandlerTruncatedMultipart(t *testing.T) {
	app := newTestApp()
	router := gin.New()
	router.POST("/submit", NewIntakeHandler(app.intake, &config.IntakeConfig{Mode: config.ModeSync}).Submit)

	body, contentType := multipartBody(t, janeFields(), formFile{"w2", "w2.pdf", "application/pdf", pdfBytes})
	truncated := body.Bytes()[:body.Len()-30]
	req := httptest.NewRequest("POST", "/submit", bytes.NewReader(truncated))
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	var resp submitResponseBody
	decode(t, w, &resp)
	if resp.Success || resp.Reason != "invalid_multipart" {
		t.Errorf("Expected invalid_multipart failure, got %+v", resp)
	}
	if app.backend.Count() != 0 {
		t.Errorf("Expected no containers, got %d", app.backend.Count())
	}
}

// deniedBackend refuses every container, as a backend would for a name it
// cannot store
type deniedBackend struct {
	service.Backend
}

func (deniedBackend) CreateContainer(ctx context.Context, name string) (string, error) {
	return "", service.ErrAccessDenied
}

func TestIntakeHandlerStorageErrorIsServerError(t *testing.T) {
	backend := deniedBackend{Backend: service.NewMemoryBackend()}
	allow := service.NewAllowList(&config.UploadConfig{
		MaxFileSize:       1 << 20,
		AllowedExtensions: []string{".pdf"},
		AllowedMimeTypes:  []string{"application/pdf"},
	})
	intake := service.NewIntakeService(backend, service.NewMetadataStore(backend), allow, nil)
	router := gin.New()
	router.POST("/submit", NewIntakeHandler(intake, &config.IntakeConfig{Mode: config.ModeSync}).Submit)

	body, contentType := multipartBody(t, janeFields())
	req := httptest.NewRequest("POST", "/submit", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	var resp submitResponseBody
	decode(t, w, &resp)
	if resp.Message != submitFailedMessage {
		t.Errorf("Expected message %q, got %q", submitFailedMessage, resp.Message)
	}
}

func TestIntakeHandlerAsync(t *testing.T) {
	app := newTestApp()
	router := gin.New()
	router.POST("/submit", NewIntakeHandler(app.intake, &config.IntakeConfig{Mode: config.ModeAsync}).Submit)

	body, contentType := multipartBody(t, janeFields(),
		formFile{"w2", "w2.pdf", "application/pdf", pdfBytes})
	req := httptest.NewRequest("POST", "/submit", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	app.dispatcher.Wait()

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Expected ndjson content type, got %q", ct)
	}

	var lines []submitResponseBody
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		var line submitResponseBody
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("Failed to parse line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0].Stage != "accepted" || !lines[0].Success {
		t.Errorf("Unexpected acknowledgement %+v", lines[0])
	}
	if lines[1].Stage != "completed" || lines[1].FilesUploaded != 1 {
		t.Errorf("Unexpected completion %+v", lines[1])
	}
	if app.backend.Count() != 1 {
		t.Errorf("Expected 1 container, got %d", app.backend.Count())
	}
}

func TestIntakeHandlerAsyncValidatesFirst(t *testing.T) {
	app := newTestApp()
	router := gin.New()
	router.POST("/submit", NewIntakeHandler(app.intake, &config.IntakeConfig{Mode: config.ModeAsync}).Submit)

	body, contentType := multipartBody(t, map[string]string{"firstName": "Jane"})
	req := httptest.NewRequest("POST", "/submit", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 before acknowledgement, got %d", w.Code)
	}
}
