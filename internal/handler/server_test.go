package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pharmcatalog/internal/auth"
	"pharmcatalog/internal/config"
	"pharmcatalog/internal/db"
	"pharmcatalog/internal/handler"
	"pharmcatalog/internal/model"
	"pharmcatalog/internal/repository"
	"pharmcatalog/internal/router"
	"pharmcatalog/internal/service"
	"pharmcatalog/internal/storage"
)

type testServer struct {
	e         *echo.Echo
	db        *gorm.DB
	logs      *bytes.Buffer
	jwt       *auth.JWTService
	users     repository.UserRepository
	hasher    *auth.PasswordHasher
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		UploadDir:          filepath.Join(dir, "uploads"),
		UploadURLPrefix:    "/uploads",
		UploadMaxFiles:     10,
		UploadMaxFileBytes: 1 << 20,
		BodyLimit:          "20M",
		CORSOrigins:        []string{"*"},
	}

	gormDB, err := db.Open("sqlite", filepath.Join(dir, "catalog.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store, err := storage.NewLocal(cfg.UploadDir, cfg.UploadURLPrefix)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	log := zerolog.New(logs)
	users := repository.NewUserRepository(gormDB)
	hasher := auth.NewPasswordHasher(4)
	jwtService := auth.NewJWTService("handler-secret", "test", time.Hour)

	uploads := service.NewUploadService(store, service.UploadLimits{
		MaxFiles:     cfg.UploadMaxFiles,
		MaxFileBytes: cfg.UploadMaxFileBytes,
	}, log)
	drugs := service.NewDrugService(repository.NewDrugRepository(gormDB), nil, time.Minute)

	e := echo.New()
	router.Register(e, cfg, log, jwtService, func(ctx context.Context) error {
		return db.Ping(ctx, gormDB)
	}, router.Handlers{
		Auth:    handler.NewAuthHandler(service.NewAuthService(users, hasher, jwtService)),
		Drugs:   handler.NewDrugHandler(drugs, uploads, log),
		Uploads: handler.NewUploadHandler(uploads),
	})

	return &testServer{e: e, db: gormDB, logs: logs, jwt: jwtService, users: users, hasher: hasher, uploadDir: cfg.UploadDir}
}

// tokenFor creates a user with role and returns a bearer token for it.
func (s *testServer) tokenFor(t *testing.T, email, role string) string {
	t.Helper()
	hash, err := s.hasher.Hash("secret123")
	require.NoError(t, err)
	user := &model.User{Email: email, PasswordHash: hash, Role: role}
	require.NoError(t, s.users.Create(context.Background(), user))

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.Role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(method, target, body, token string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return s.do(req, token)
}

type formFile struct {
	name    string
	content []byte
}

// multipartRequest builds a form with text fields (repeated keys allowed)
// and "images" file parts.
func multipartRequest(t *testing.T, method, target string, fields [][2]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range fields {
		require.NoError(t, w.WriteField(f[0], f[1]))
	}
	for _, f := range files {
		part, err := w.CreateFormFile("images", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	gifBytes = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	jpgBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0}, 32)...)
)
