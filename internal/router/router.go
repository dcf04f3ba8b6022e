package router

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"pharmcatalog/internal/config"
	apperrors "pharmcatalog/internal/errors"
	"pharmcatalog/internal/handler"
	"pharmcatalog/internal/middleware"
	"pharmcatalog/internal/model"
)

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Auth    *handler.AuthHandler
	Drugs   *handler.DrugHandler
	Uploads *handler.UploadHandler
}

// HealthFunc reports whether the service dependencies are reachable.
type HealthFunc func(ctx context.Context) error

// route is one API endpoint. Guarded routes require a verified token and,
// when roles is non-empty, one of those roles.
type route struct {
	method  string
	path    string
	handler echo.HandlerFunc
	guarded bool
	roles   []string
}

func apiRoutes(h Handlers) []route {
	admin := []string{model.RoleAdmin}
	return []route{
		{method: http.MethodPost, path: "/auth/register", handler: h.Auth.Register},
		{method: http.MethodPost, path: "/auth/login", handler: h.Auth.Login},
		{method: http.MethodGet, path: "/auth/me", handler: h.Auth.Me, guarded: true},

		{method: http.MethodGet, path: "/drugs", handler: h.Drugs.List},
		{method: http.MethodGet, path: "/drugs/:id", handler: h.Drugs.Get},
		{method: http.MethodPost, path: "/drugs", handler: h.Drugs.Create, guarded: true, roles: admin},
		{method: http.MethodPut, path: "/drugs/:id", handler: h.Drugs.Update, guarded: true, roles: admin},
		{method: http.MethodDelete, path: "/drugs/:id", handler: h.Drugs.Delete, guarded: true, roles: admin},

		{method: http.MethodPost, path: "/upload", handler: h.Uploads.Upload, guarded: true, roles: admin},
		{method: http.MethodPost, path: "/drugs/upload", handler: h.Uploads.Upload, guarded: true, roles: admin},
	}
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log zerolog.Logger,
	verifier middleware.TokenVerifier,
	health HealthFunc,
	h Handlers,
) {
	e.HideBanner = true
	e.Validator = NewValidator()

	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if cfg.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.BodyLimit))
	}

	e.GET("/healthz", func(c echo.Context) error {
		if health != nil {
			if err := health(c.Request().Context()); err != nil {
				log.Error().Err(err).Msg("health check failed")
				return c.String(http.StatusServiceUnavailable, "unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	routes := apiRoutes(h)
	policy := middleware.Policy{}
	for _, r := range routes {
		if r.guarded {
			policy.Require(r.method, "/api"+r.path, r.roles...)
		}
	}

	api := e.Group("/api", middleware.Guard(verifier, policy))
	for _, r := range routes {
		api.Add(r.method, r.path, r.handler)
	}
	api.Static(cfg.UploadURLPrefix, cfg.UploadDir)

	if cfg.WebDir != "" {
		e.Use(echomw.StaticWithConfig(echomw.StaticConfig{
			Root:  cfg.WebDir,
			HTML5: true,
			Skipper: func(c echo.Context) bool {
				p := c.Request().URL.Path
				return strings.HasPrefix(p, "/api") || strings.HasPrefix(p, "/swagger") || p == "/healthz"
			},
		}))
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator returns a validator reporting fields by their json names.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface. Failures are returned as a
// *errors.ValidationError with one message per field.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	verr := &apperrors.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), message(fe))
	}
	return verr.OrNil()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
