package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vtu-tools/college-erp-api/internal/models"
	"github.com/vtu-tools/college-erp-api/internal/service"
	appErrors "github.com/vtu-tools/college-erp-api/pkg/errors"
	"github.com/vtu-tools/college-erp-api/pkg/response"
)

// ComponentHandler exposes component-mark endpoints.
type ComponentHandler struct {
	components     *service.ComponentService
	imports        *service.ImportService
	uploadMaxBytes int64
}

// NewComponentHandler constructs handler.
func NewComponentHandler(components *service.ComponentService, imports *service.ImportService, uploadMaxBytes int64) *ComponentHandler {
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = 5 * 1024 * 1024
	}
	return &ComponentHandler{components: components, imports: imports, uploadMaxBytes: uploadMaxBytes}
}

// Grid godoc
// @Summary Component mark grid
// @Tags Components
// @Produce json
// @Param subjectId query string true "Subject ID"
// @Param component query string true "Component code"
// @Param attemptNo query int true "Attempt number"
// @Param page query int false "Page"
// @Param size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /components/grid [get]
func (h *ComponentHandler) Grid(c *gin.Context) {
	attemptNo, err := intQuery(c, "attemptNo", 1)
	if err != nil {
		response.Error(c, err)
		return
	}
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

	result, err := h.components.Grid(c.Request.Context(), service.GridRequest{
		SubjectID: c.Query("subjectId"),
		Component: models.ComponentKind(c.Query("component")),
		AttemptNo: attemptNo,
		Page:      page,
		Size:      size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"rows": result.Rows, "max_marks": result.MaxMarks}, &result.Pagination)
}

// Entry godoc
// @Summary Upsert a single component mark
// @Tags Components
// @Accept json
// @Produce json
// @Param payload body service.UpsertMarkRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Router /components/entry [patch]
func (h *ComponentHandler) Entry(c *gin.Context) {
	var req service.UpsertMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	mark, err := h.components.UpsertMark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mark, nil)
}

// Upload godoc
// @Summary Bulk import marks from a spreadsheet
// @Tags Components
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Marks spreadsheet"
// @Param subjectId formData string true "Subject ID"
// @Param component formData string true "Component code"
// @Param attemptNo formData int true "Attempt number"
// @Success 200 {object} response.Envelope
// @Router /components/upload [post]
func (h *ComponentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if fileHeader.Size > h.uploadMaxBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds maximum size of %d bytes", h.uploadMaxBytes)))
		return
	}
	attemptNo, err := intForm(c, "attemptNo")
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck
	payload, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read uploaded file"))
		return
	}

	summary, err := h.imports.ProcessUpload(c.Request.Context(), service.UploadRequest{
		SubjectID: c.PostForm("subjectId"),
		Component: models.ComponentKind(c.PostForm("component")),
		AttemptNo: attemptNo,
		File:      payload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	// Partial success is the expected common case: row failures are embedded
	// in the summary, never surfaced as an HTTP error.
	response.JSON(c, http.StatusOK, summary, nil)
}

// Template godoc
// @Summary Download a blank marks entry template
// @Tags Components
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param subjectId query string true "Subject ID"
// @Param component query string true "Component code"
// @Param attemptNo query int true "Attempt number"
// @Success 200 {file} binary
// @Router /components/template [get]
func (h *ComponentHandler) Template(c *gin.Context) {
	attemptNo, err := intQuery(c, "attemptNo", 1)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.imports.Template(c.Request.Context(), service.TemplateRequest{
		SubjectID: c.Query("subjectId"),
		Component: models.ComponentKind(c.Query("component")),
		AttemptNo: attemptNo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.Filename, result.ContentType, result.Payload)
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a positive integer", name))
	}
	return value, nil
}

func intForm(c *gin.Context, name string) (int, error) {
	raw := c.PostForm(name)
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a positive integer", name))
	}
	return value, nil
}
