package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/adythan1/Tax-Returns/config"
	"github.com/adythan1/Tax-Returns/model"
	"github.com/adythan1/Tax-Returns/pkg/logger"
	"github.com/adythan1/Tax-Returns/service"
	"github.com/gin-gonic/gin"
)

const submitFailedMessage = "Failed to process submission"

// IntakeHandler accepts client portal submissions
type IntakeHandler struct {
	intake *service.IntakeService
	mode   string
}

func NewIntakeHandler(intake *service.IntakeService, cfg *config.IntakeConfig) *IntakeHandler {
	return &IntakeHandler{intake: intake, mode: cfg.Mode}
}

// Submit handles POST /api/submit-portal
func (h *IntakeHandler) Submit(c *gin.Context) {
	form, err := c.MultipartForm()
	switch {
	case errors.Is(err, http.ErrNotMultipart):
		// no form at all: every required field is missing
		form = &multipart.Form{}
	case err != nil:
		logger.Error(c.Request.Context(), "failed to parse multipart form", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": submitFailedMessage,
			"reason":  "invalid_multipart",
		})
		return
	}

	req := requestFromForm(form)
	if err := h.intake.Validate(req); err != nil {
		body := failure(err.Error(), err)
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			body["missing"] = verr.Missing
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}

	if h.mode == config.ModeAsync {
		h.submitAsync(c, req)
		return
	}

	res, err := h.intake.Submit(c.Request.Context(), req)
	if err != nil {
		logger.Error(c.Request.Context(), "submission failed", "error", err)
		c.JSON(intakeStatusFor(err), failure(submitFailedMessage, err))
		return
	}
	c.JSON(http.StatusOK, submitResponse(res))
}

// submitAsync acknowledges the fully received form before storing it, then
// reports the outcome on a second line if the client is still there. The
// work stays on this goroutine: multipart temp files are removed once the
// handler returns.
func (h *IntakeHandler) submitAsync(c *gin.Context, req *service.IntakeRequest) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	if err := enc.Encode(gin.H{
		"success": true,
		"stage":   "accepted",
		"message": "Submission received, processing documents",
	}); err != nil {
		logger.Warn(c.Request.Context(), "failed to write acknowledgement", "error", err)
	}
	c.Writer.Flush()

	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.intake.Submit(ctx, req)

	var line gin.H
	if err != nil {
		logger.Error(ctx, "submission failed", "error", err)
		line = failure(submitFailedMessage, err)
		line["stage"] = "failed"
	} else {
		line = submitResponse(res)
		line["stage"] = "completed"
	}

	if c.Request.Context().Err() != nil {
		logger.Info(ctx, "client gone before submission completed", "stored", err == nil)
		return
	}
	if err := enc.Encode(line); err != nil {
		logger.Warn(ctx, "failed to write completion", "error", err)
		return
	}
	c.Writer.Flush()
}

func submitResponse(res *service.IntakeResult) gin.H {
	body := gin.H{
		"success":       true,
		"message":       "Documents submitted successfully",
		"filesUploaded": res.FilesUploaded,
		"folderPath":    res.Folder,
		"folderLink":    res.Link,
	}
	if len(res.Skipped) > 0 {
		body["skipped"] = res.Skipped
	}
	return body
}

// requestFromForm maps the portal form onto an intake request. The older
// form posted the tax id as "ssn".
func requestFromForm(form *multipart.Form) *service.IntakeRequest {
	value := func(keys ...string) string {
		for _, k := range keys {
			if v := form.Value[k]; len(v) > 0 && strings.TrimSpace(v[0]) != "" {
				return strings.TrimSpace(v[0])
			}
		}
		return ""
	}

	return &service.IntakeRequest{
		Fields: model.Metadata{
			FirstName:       value("firstName"),
			LastName:        value("lastName"),
			Email:           value("email"),
			Phone:           value("phone"),
			TaxID:           value("taxId", "ssn"),
			Address:         value("address"),
			FilingStatus:    value("filingStatus"),
			TaxYear:         value("taxYear"),
			ServiceType:     value("serviceType"),
			FirstTimeFiling: value("firstTimeFiling"),
			AdditionalInfo:  value("additionalInfo"),
		},
		Uploads: service.UploadsFromForm(form),
	}
}
