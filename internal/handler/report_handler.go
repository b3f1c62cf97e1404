package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/salon-pos-api/internal/service"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
	"github.com/noah-isme/salon-pos-api/pkg/response"
)

// ReportHandler wires attendance report generation and signed downloads.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GenerateDay godoc
// @Summary Generate daily attendance report
// @Description Render the store's attendance-hours report for one civil day
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param date query string true "Civil day (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/attendance/daily [post]
func (h *ReportHandler) GenerateDay(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	day, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	format := c.DefaultQuery("format", service.FormatCSV)

	artifact, err := h.reports.GenerateDayReport(c.Request.Context(), claims.StoreID, day, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, artifact, nil)
}

// Download godoc
// @Summary Download report
// @Description Stream a previously generated report using its signed token
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, name, err := h.reports.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Cache-Control", "no-store")
	http.ServeContent(c.Writer, c.Request, name, time.Now(), file)
}
