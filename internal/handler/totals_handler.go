package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vtu-tools/college-erp-api/internal/service"
	"github.com/vtu-tools/college-erp-api/pkg/response"
)

// TotalsHandler exposes overall-total endpoints.
type TotalsHandler struct {
	totals *service.TotalsService
}

// NewTotalsHandler constructs handler.
func NewTotalsHandler(totals *service.TotalsService) *TotalsHandler {
	return &TotalsHandler{totals: totals}
}

// Grid godoc
// @Summary Paginated overall totals for a subject
// @Tags Totals
// @Produce json
// @Param subjectId query string true "Subject ID"
// @Param page query int false "Page"
// @Param size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /totals/grid [get]
func (h *TotalsHandler) Grid(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		response.Error(c, err)
		return
	}
	size, err := intQuery(c, "size", 20)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.totals.Grid(c.Request.Context(), service.TotalsGridRequest{
		SubjectID: c.Query("subjectId"),
		Page:      page,
		Size:      size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Rows, &result.Pagination)
}

// Export godoc
// @Summary Download subject totals as xlsx, csv or pdf
// @Tags Totals
// @Produce application/octet-stream
// @Param subjectId query string true "Subject ID"
// @Param format query string true "xlsx, csv or pdf"
// @Success 200 {file} binary
// @Router /totals/export [get]
func (h *TotalsHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", string(service.FormatXLSX))
	result, err := h.totals.Export(c.Request.Context(), c.Query("subjectId"), service.ExportFormat(format))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.Filename, result.ContentType, result.Payload)
}
