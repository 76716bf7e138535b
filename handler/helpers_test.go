package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/adythan1/Tax-Returns/config"
	"github.com/adythan1/Tax-Returns/service"
	"github.com/gin-gonic/gin"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")

type formFile struct {
	field       string
	name        string
	contentType string
	data        []byte
}

// multipartBody encodes fields and files as a portal form post
func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write field: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("Failed to create part: %v", err)
		}
		part.Write(f.data)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

type testApp struct {
	backend    *service.MemoryBackend
	dispatcher *service.Dispatcher
	intake     *service.IntakeService
	admin      *service.AdminService
}

func newTestApp() *testApp {
	backend := service.NewMemoryBackend()
	metadata := service.NewMetadataStore(backend)
	allow := service.NewAllowList(&config.UploadConfig{
		MaxFileSize:       1 << 20,
		AllowedExtensions: []string{".pdf", ".png", ".jpg"},
		AllowedMimeTypes:  []string{"application/pdf", "image/png", "image/jpeg"},
	})
	dispatcher := service.NewDispatcher(service.LogNotifier{}, time.Second)
	return &testApp{
		backend:    backend,
		dispatcher: dispatcher,
		intake:     service.NewIntakeService(backend, metadata, allow, dispatcher),
		admin:      service.NewAdminService(backend, metadata, 10),
	}
}

func janeFields() map[string]string {
	return map[string]string{
		"firstName": "Jane",
		"lastName":  "Doe",
		"email":     "jane@example.com",
		"ssn":       "123-45-6789",
		"taxYear":   "2024",
	}
}

// seed submits one form through the intake handler and returns the folder
func (a *testApp) seed(t *testing.T, fields map[string]string, files ...formFile) string {
	t.Helper()
	router := gin.New()
	router.POST("/submit", NewIntakeHandler(a.intake, &config.IntakeConfig{Mode: config.ModeSync}).Submit)

	body, contentType := multipartBody(t, fields, files...)
	req := httptest.NewRequest("POST", "/submit", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	a.dispatcher.Wait()

	if w.Code != http.StatusOK {
		t.Fatalf("Seed submission failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		FolderPath string `json:"folderPath"`
	}
	decode(t, w, &resp)
	return resp.FolderPath
}
