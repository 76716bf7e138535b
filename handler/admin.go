package handler

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/adythan1/Tax-Returns/model"
	"github.com/adythan1/Tax-Returns/pkg/logger"
	"github.com/adythan1/Tax-Returns/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler serves the review dashboard
type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type DownloadQuery struct {
	Folder string `form:"folder" binding:"required"`
	File   string `form:"file" binding:"required"`
}

type ArchiveQuery struct {
	Folder string `form:"folder" binding:"required"`
}

type UpdateStatusRequest struct {
	Folder string       `json:"folder" binding:"required"`
	Status model.Status `json:"status" binding:"required"`
}

// List handles GET /api/admin/submissions
func (h *AdminHandler) List(c *gin.Context) {
	filter := service.Filter{
		Search: c.Query("search"),
		Range:  service.ParseDateRange(c.Query("range")),
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = page
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" && status != "all" {
		filter.Status = model.Status(status)
		if !filter.Status.Valid() {
			c.JSON(http.StatusBadRequest, failure("Invalid status", service.ErrInvalidStatus))
			return
		}
	}

	page, err := h.admin.List(c.Request.Context(), filter)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list submissions", "error", err)
		body := failure("Failed to fetch submissions", err)
		body["submissions"] = []model.Submission{}
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"submissions": page.Submissions,
		"total":       page.Total,
		"page":        page.Page,
		"pageSize":    page.PageSize,
		"totalPages":  page.TotalPages,
	})
}

// Get handles GET /api/admin/submissions/:folder
func (h *AdminHandler) Get(c *gin.Context) {
	sub, err := h.admin.Get(c.Request.Context(), c.Param("folder"))
	if err != nil {
		status := statusFor(err)
		c.JSON(status, failure(messageFor(status, "Failed to fetch submission"), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "submission": sub})
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to compute stats", "error", err)
		c.JSON(http.StatusInternalServerError, failure("Failed to fetch stats", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"total":    stats.Total,
		"today":    stats.Today,
		"byStatus": stats.ByStatus,
	})
}

// Download handles GET /api/admin/download
func (h *AdminHandler) Download(c *gin.Context) {
	var q DownloadQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "folder and file are required", "reason": "validation"})
		return
	}

	ctx := logger.WithFolder(c.Request.Context(), q.Folder)
	rc, dl, err := h.admin.OpenFile(ctx, q.Folder, q.File)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusForbidden {
			logger.Warn(ctx, "rejected download", "file", q.File)
		}
		c.JSON(status, failure(messageFor(status, "Failed to download file"), err))
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, dl.Size, dl.ContentType, rc, map[string]string{
		"Content-Disposition": attachment(dl.Name),
	})
}

// DownloadZip handles GET /api/admin/download-zip
func (h *AdminHandler) DownloadZip(c *gin.Context) {
	var q ArchiveQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "folder is required", "reason": "validation"})
		return
	}

	ctx := logger.WithFolder(c.Request.Context(), q.Folder)
	archive, err := h.admin.PrepareArchive(ctx, q.Folder)
	if err != nil {
		status := statusFor(err)
		c.JSON(status, failure(messageFor(status, "Failed to create archive"), err))
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", attachment(archive.Name()))
	c.Status(http.StatusOK)
	if err := archive.Write(ctx, c.Writer); err != nil {
		// the status line is already out; all we can do is log and cut the stream
		logger.Error(ctx, "archive stream failed", "error", err)
		_ = c.Error(err)
		return
	}
	logger.Info(ctx, "archive downloaded", "files", archive.Len())
}

// UpdateStatus handles POST /api/admin/update-status
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "folder and status are required", "reason": "validation"})
		return
	}

	if err := h.admin.UpdateStatus(c.Request.Context(), req.Folder, req.Status); err != nil {
		status := statusFor(err)
		msg := messageFor(status, "Failed to update status")
		if status == http.StatusBadRequest {
			msg = "Invalid status"
		}
		c.JSON(status, failure(msg, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "folder": req.Folder, "status": req.Status})
}

func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return `attachment; filename="download"`
}
