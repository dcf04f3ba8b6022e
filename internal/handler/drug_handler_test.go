package handler_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmcatalog/internal/model"
	"pharmcatalog/internal/service"
)

type drugView struct {
	ID           uint     `json:"id"`
	Name         string   `json:"name"`
	Description  *string  `json:"description"`
	Price        *float64 `json:"price"`
	Type         *string  `json:"type"`
	Images       []string `json:"images"`
	Manufacturer *string  `json:"manufacturer"`
}

type errorView struct {
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func TestUploadThenCreateReferencingImages(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, "admin@example.com", model.RoleAdmin)

	req := multipartRequest(t, http.MethodPost, "/api/upload", nil,
		formFile{"front.PNG", pngBytes},
		formFile{"back.gif", gifBytes},
		formFile{"side.jpg", jpgBytes},
	)
	rec := s.do(req, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	uploaded := decode[service.UploadResult](t, rec)
	require.Len(t, uploaded.Images, 3)
	assert.Empty(t, uploaded.Rejected)
	assert.True(t, strings.HasSuffix(uploaded.Images[0], ".png"))
	assert.True(t, strings.HasSuffix(uploaded.Images[1], ".gif"))
	assert.True(t, strings.HasSuffix(uploaded.Images[2], ".jpg"))
	for _, ref := range uploaded.Images {
		assert.True(t, strings.HasPrefix(ref, "/uploads/"), ref)
		_, err := os.Stat(filepath.Join(s.uploadDir, strings.TrimPrefix(ref, "/uploads/")))
		assert.NoError(t, err)
	}

	body := `{"name":"Aspirin","price":3.5,"images":["` + strings.Join(uploaded.Images, `","`) + `"]}`
	rec = s.doJSON(http.MethodPost, "/api/drugs", body, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[drugView](t, rec)
	assert.Equal(t, "Aspirin", created.Name)
	require.NotNil(t, created.Price)
	assert.Equal(t, 3.5, *created.Price)
	assert.Equal(t, uploaded.Images, created.Images)

	rec = s.doJSON(http.MethodGet, "/api/drugs/"+strconv.Itoa(int(created.ID)), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decode[drugView](t, rec)
	assert.Equal(t, uploaded.Images, fetched.Images)
	require.NotNil(t, fetched.Price)
	assert.Equal(t, 3.5, *fetched.Price)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api"+uploaded.Images[0], nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngBytes, rec.Body.Bytes())
}

func TestUpload_RejectsNonImagesIndividually(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, "admin@example.com", model.RoleAdmin)

	req := multipartRequest(t, http.MethodPost, "/api/drugs/upload", nil,
		formFile{"notes.txt", []byte("plain text, not an image")},
		formFile{"ok.png", pngBytes},
	)
	rec := s.do(req, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[service.UploadResult](t, rec)
	assert.Len(t, result.Images, 1)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "notes.txt", result.Rejected[0].Name)
}

func TestUpload_TooManyFiles(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, "admin@example.com", model.RoleAdmin)

	files := make([]formFile, 11)
	for i := range files {
		files[i] = formFile{"f" + strconv.Itoa(i) + ".png", pngBytes}
	}
	rec := s.do(multipartRequest(t, http.MethodPost, "/api/upload", nil, files...), admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpload_RequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	user := s.tokenFor(t, "user@example.com", model.RoleUser)

	rec := s.do(multipartRequest(t, http.MethodPost, "/api/upload", nil, formFile{"a.png", pngBytes}), user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(multipartRequest(t, http.MethodPost, "/api/upload", nil, formFile{"a.png", pngBytes}), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateMultipart_ReferencesBeforeUploads(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, "admin@example.com", model.RoleAdmin)

	req := multipartRequest(t, http.MethodPost, "/api/drugs", [][2]string{
		{"name", "Ibuprofen"},
		{"price", "12.40"},
		{"manufacturer", "Acme"},
		{"images", "/uploads/existing.png"},
	}, formFile{"new.png", pngBytes})
	rec := s.do(req, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[drugView](t, rec)
	require.Len(t, created.Images, 2)
	assert.Equal(t, "/uploads/existing.png", created.Images[0])
	assert.True(t, strings.HasPrefix(created.Images[1], "/uploads/"))
	require.NotNil(t, created.Manufacturer)
	assert.Equal(t, "Acme", *created.Manufacturer)
	assert.Nil(t, created.Description)
}

func TestCreate_Validation(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, "admin@example.com", model.RoleAdmin)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing name", `{"price":1}`, "name"},
		{"blank name", `{"name":"   "}`, "name"},
		{"negative price", `{"name":"X","price":-1}`, "price"},
		{"non numeric price", `{"name":"X","price":"cheap"}`, "price"},
		{"object description", `{"name":"X","description":{"a":1}}`, "description"},
		{"images not strings", `{"name":"X","images":[1,2]}`, "images"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.doJSON(http.MethodPost, "/api/drugs", tt.body, admin)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decode[errorView](t, rec)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
			assert.Contains(t, resp.Fields, tt.wantField)
		})
	}
}

func TestCreate_MalformedJSON(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, "admin@example.com", model.RoleAdmin)

	rec := s.doJSON(http.MethodPost, "/api/drugs", `{"name":`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreate_Forbidden(t *testing.T) {
	s := newTestServer(t)
	user := s.tokenFor(t, "user@example.com", model.RoleUser)

	rec := s.doJSON(http.MethodPost, "/api/drugs", `{"name":"Aspirin"}`, user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.doJSON(http.MethodGet, "/api/drugs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"products":[]}`, rec.Body.String())
}

func TestUpdate_PartialAndClear(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, "admin@example.com", model.RoleAdmin)

	rec := s.doJSON(http.MethodPost, "/api/drugs",
		`{"name":"Aspirin","description":"pain relief","type":"tablet","price":"3.5","images":["/uploads/a.png"]}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[drugView](t, rec)
	target := "/api/drugs/" + strconv.Itoa(int(created.ID))

	rec = s.doJSON(http.MethodPut, target, `{"description":null,"type":"","price":4}`, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[drugView](t, rec)
	assert.Equal(t, "Aspirin", updated.Name)
	assert.Nil(t, updated.Description)
	assert.Nil(t, updated.Type)
	require.NotNil(t, updated.Price)
	assert.Equal(t, 4.0, *updated.Price)
	assert.Equal(t, []string{"/uploads/a.png"}, updated.Images)

	rec = s.doJSON(http.MethodPut, target, `{"images":[]}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[drugView](t, rec).Images)

	req := multipartRequest(t, http.MethodPut, target, [][2]string{{"name", "Aspirin Forte"}}, formFile{"b.png", pngBytes})
	rec = s.do(req, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	final := decode[drugView](t, rec)
	assert.Equal(t, "Aspirin Forte", final.Name)
	assert.Len(t, final.Images, 1)
}

func TestUpdate_NotFound(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, "admin@example.com", model.RoleAdmin)

	rec := s.doJSON(http.MethodPut, "/api/drugs/999", `{"name":"Ghost"}`, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DRUG_NOT_FOUND", decode[errorView](t, rec).Code)
}

func TestDelete(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, "admin@example.com", model.RoleAdmin)

	rec := s.doJSON(http.MethodPost, "/api/drugs", `{"name":"Aspirin"}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	target := "/api/drugs/" + strconv.Itoa(int(decode[drugView](t, rec).ID))

	rec = s.doJSON(http.MethodDelete, target, "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.doJSON(http.MethodGet, target, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.doJSON(http.MethodDelete, target, "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGet_InvalidID(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []string{"abc", "0", "-3"} {
		rec := s.doJSON(http.MethodGet, "/api/drugs/"+id, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
}

func TestList_NewestFirst(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, "admin@example.com", model.RoleAdmin)

	for _, name := range []string{"First", "Second"} {
		rec := s.doJSON(http.MethodPost, "/api/drugs", `{"name":"`+name+`"}`, admin)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.doJSON(http.MethodGet, "/api/drugs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Products []drugView `json:"products"`
	}](t, rec)
	require.Len(t, list.Products, 2)
	assert.Equal(t, "Second", list.Products[0].Name)
	assert.Equal(t, "First", list.Products[1].Name)
}

func TestUpdate_NotFoundDiscardsUploads(t *testing.T) {
	s := newTestServer(t)
	admin := s.tokenFor(t, "admin@example.com", model.RoleAdmin)

	req := multipartRequest(t, http.MethodPut, "/api/drugs/404", [][2]string{{"name", "Ghost"}}, formFile{"a.png", pngBytes})
	rec := s.do(req, admin)
	require.Equal(t, http.StatusNotFound, rec.Code)

	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInternalErrorCauseIsLogged(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.db.Migrator().DropTable(&model.Drug{}))

	rec := s.doJSON(http.MethodGet, "/api/drugs", "", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decode[errorView](t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	assert.NotContains(t, rec.Body.String(), "no such table")
	assert.Contains(t, s.logs.String(), "no such table")
}
