package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	apperrors "pharmcatalog/internal/errors"
	"pharmcatalog/internal/model"
	"pharmcatalog/internal/service"
)

var drugFields = []string{
	service.FieldName,
	service.FieldDescription,
	service.FieldPrice,
	service.FieldType,
	service.FieldGenus,
	service.FieldDosage,
	service.FieldManufacturer,
}

// DrugHandler serves the catalog endpoints.
type DrugHandler struct {
	drugs   service.DrugService
	uploads service.UploadService
	log     zerolog.Logger
}

// NewDrugHandler creates a drug handler.
func NewDrugHandler(drugs service.DrugService, uploads service.UploadService, log zerolog.Logger) *DrugHandler {
	return &DrugHandler{drugs: drugs, uploads: uploads, log: log}
}

// ListResponse wraps the catalog listing.
type ListResponse struct {
	Products []model.Drug `json:"products"`
}

// DrugRequest documents the accepted drug fields. Every field is optional on
// update; name is required on create.
type DrugRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Price        string   `json:"price"`
	Type         string   `json:"type"`
	Genus        string   `json:"genus"`
	Dosage       string   `json:"dosage"`
	Manufacturer string   `json:"manufacturer"`
	Images       []string `json:"images"`
}

// List godoc
// @Summary List drugs
// @Tags drugs
// @Produce json
// @Success 200 {object} ListResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /drugs [get]
func (h *DrugHandler) List(c echo.Context) error {
	drugs, err := h.drugs.List(c.Request().Context())
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, ListResponse{Products: drugs})
}

// Get godoc
// @Summary Get drug by id
// @Tags drugs
// @Produce json
// @Param id path int true "Drug ID"
// @Success 200 {object} model.Drug
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /drugs/{id} [get]
func (h *DrugHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	drug, err := h.drugs.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, drug)
}

// Create godoc
// @Summary Create drug
// @Description Accepts multipart/form-data (fields, `images` files and `images` reference values) or JSON.
// @Tags drugs
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DrugRequest false "Drug fields"
// @Success 201 {object} model.Drug
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /drugs [post]
func (h *DrugHandler) Create(c echo.Context) error {
	patch, uploaded, err := h.readPatch(c)
	if err != nil {
		return err
	}
	drug, err := h.drugs.Create(c.Request().Context(), patch)
	if err != nil {
		h.uploads.Discard(c.Request().Context(), uploaded)
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, drug)
}

// Update godoc
// @Summary Update drug
// @Description Only supplied fields change. Images are replaced when references or files are supplied.
// @Tags drugs
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Drug ID"
// @Param request body DrugRequest false "Drug fields"
// @Success 200 {object} model.Drug
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /drugs/{id} [put]
func (h *DrugHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	patch, uploaded, err := h.readPatch(c)
	if err != nil {
		return err
	}
	drug, err := h.drugs.Update(c.Request().Context(), id, patch)
	if err != nil {
		h.uploads.Discard(c.Request().Context(), uploaded)
		return respondError(err)
	}
	return c.JSON(http.StatusOK, drug)
}

// Delete godoc
// @Summary Delete drug
// @Tags drugs
// @Security BearerAuth
// @Param id path int true "Drug ID"
// @Success 204
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /drugs/{id} [delete]
func (h *DrugHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.drugs.Delete(c.Request().Context(), id); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// readPatch decodes the request body into a patch and stores attached files.
// Fields are validated before any file is written; the stored references
// are returned so a failed save can discard them.
func (h *DrugHandler) readPatch(c echo.Context) (service.DrugPatch, []string, error) {
	var (
		values    map[string]string
		refs      []string
		imagesSet bool
		files     []*multipart.FileHeader
	)

	ctype := c.Request().Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(ctype, echo.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return service.DrugPatch{}, nil, invalidRequest("invalid multipart body")
		}
		values = firstValues(form.Value)
		refs = form.Value[service.FieldImages]
		files = form.File[service.FieldImages]
		imagesSet = hasNonEmpty(refs) || len(files) > 0
	case strings.HasPrefix(ctype, echo.MIMEApplicationForm):
		params, err := c.FormParams()
		if err != nil {
			return service.DrugPatch{}, nil, invalidRequest("invalid form body")
		}
		values = firstValues(params)
		refs = params[service.FieldImages]
		imagesSet = hasNonEmpty(refs)
	default:
		var err error
		values, refs, imagesSet, err = decodeJSONPatch(c.Request().Body)
		if err != nil {
			return service.DrugPatch{}, nil, err
		}
	}

	patch, err := service.ParseDrugPatch(values, refs, imagesSet)
	if err != nil {
		return service.DrugPatch{}, nil, respondError(err)
	}

	if len(files) == 0 {
		return patch, nil, nil
	}
	result, err := h.uploads.Store(c.Request().Context(), files)
	if err != nil {
		return service.DrugPatch{}, nil, respondError(err)
	}
	if len(result.Rejected) > 0 {
		h.log.Warn().Int("rejected", len(result.Rejected)).Msg("drug saved without some attachments")
	}
	return patch.WithImages(result.Images), result.Images, nil
}

func firstValues(form map[string][]string) map[string]string {
	values := make(map[string]string, len(drugFields))
	for _, field := range drugFields {
		if v, ok := form[field]; ok && len(v) > 0 {
			values[field] = v[0]
		}
	}
	return values
}

func hasNonEmpty(list []string) bool {
	for _, v := range list {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// decodeJSONPatch reads a JSON object of drug fields. null clears a field,
// numbers are accepted for price, and images may be a list or a single string.
func decodeJSONPatch(body io.Reader) (map[string]string, []string, bool, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, false, invalidRequest("invalid request body")
	}
	values := map[string]string{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return values, nil, false, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, false, invalidRequest("invalid request body")
	}

	verr := &apperrors.ValidationError{}
	for _, field := range drugFields {
		msg, ok := doc[field]
		if !ok {
			continue
		}
		v, err := scalarText(msg)
		if err != nil {
			verr.Add(field, "must be a string")
			continue
		}
		values[field] = v
	}

	var images []string
	msg, imagesSet := doc[service.FieldImages]
	if imagesSet {
		switch trimmed := bytes.TrimSpace(msg); {
		case bytes.Equal(trimmed, []byte("null")):
			images = []string{}
		case len(trimmed) > 0 && trimmed[0] == '"':
			var one string
			if err := json.Unmarshal(trimmed, &one); err != nil {
				verr.Add(service.FieldImages, "must be a list of strings")
			}
			images = []string{one}
		default:
			if err := json.Unmarshal(trimmed, &images); err != nil {
				verr.Add(service.FieldImages, "must be a list of strings")
			}
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, nil, false, respondError(err)
	}
	return values, images, imagesSet, nil
}

// scalarText renders a JSON string, number or null as plain text.
func scalarText(msg json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(msg)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		err := json.Unmarshal(trimmed, &s)
		return s, err
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", err
	}
	return n.String(), nil
}
