package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
	"github.com/wms/stocktaking/internal/interfaces/http/dto"
)

// ReportHandler serves discrepancy report exports
type ReportHandler struct {
	BaseHandler
	reports *stocktakingapp.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports *stocktakingapp.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// ReportLinkResponse points at an uploaded report
type ReportLinkResponse struct {
	FileName    string `json:"file_name"`
	DownloadURL string `json:"download_url"`
}

// Export renders the discrepancy workbook. Uploaded reports answer with a
// download link unless ?inline=true asks for the file itself.
// GET /stocktaking/sheets/:id/report
func (h *ReportHandler) Export(c *gin.Context) {
	sheetID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	report, err := h.reports.Export(c.Request.Context(), sheetID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	inline, _ := strconv.ParseBool(c.Query("inline"))
	if report.DownloadURL != "" && !inline {
		h.Success(c, ReportLinkResponse{FileName: report.FileName, DownloadURL: report.DownloadURL})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.FileName+`"`)
	c.Data(http.StatusOK, report.ContentType, report.Content)
}

// ObjectOpener reads back objects kept by in-memory storage
type ObjectOpener interface {
	Open(key string) (io.Reader, string, bool)
}

// FileHandler serves reports kept in process memory, standing in for
// presigned S3 links in development
type FileHandler struct {
	BaseHandler
	objects ObjectOpener
	now     func() time.Time
}

// NewFileHandler creates a new FileHandler
func NewFileHandler(objects ObjectOpener) *FileHandler {
	return &FileHandler{objects: objects, now: time.Now}
}

// Download streams a stored object while its link has not expired
// GET /files/*key
func (h *FileHandler) Download(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	if raw := c.Query("expires"); raw != "" {
		expires, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "Invalid expires format")
			return
		}
		if h.now().After(expires) {
			h.Error(c, dto.ErrCodeNotFound, "Download link has expired")
			return
		}
	}

	body, contentType, ok := h.objects.Open(key)
	if !ok {
		h.Error(c, dto.ErrCodeNotFound, "File not found")
		return
	}
	name := key[strings.LastIndex(key, "/")+1:]
	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{
		"Content-Disposition": `attachment; filename="` + name + `"`,
	})
}
