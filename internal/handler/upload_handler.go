package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"pharmcatalog/internal/service"
)

// UploadHandler stores standalone image uploads.
type UploadHandler struct {
	uploads service.UploadService
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(uploads service.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Upload godoc
// @Summary Upload images
// @Description Stores up to the configured number of `images` files and returns their reference paths in received order.
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param images formData file true "Image files"
// @Success 200 {object} service.UploadResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /upload [post]
func (h *UploadHandler) Upload(c echo.Context) error {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return invalidRequest("multipart/form-data body required")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return invalidRequest("invalid multipart body")
	}

	result, err := h.uploads.Store(c.Request().Context(), form.File[service.FieldImages])
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, result)
}
