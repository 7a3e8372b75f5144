package http

import (
	"io/fs"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/HugPhiluu/PhilCard/docs"
	"github.com/HugPhiluu/PhilCard/internal/handler"
	"github.com/HugPhiluu/PhilCard/internal/service"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth    *handler.AuthHandler
	Links   *handler.LinkHandler
	Config  *handler.ConfigHandler
	Uploads *handler.UploadHandler
	Icons   *handler.IconHandler
	Backup  *handler.BackupHandler
}

// NewRouter serves the API under /api and the client from staticDir, or from
// embedded when staticDir is empty.
func NewRouter(h Handlers, authService service.AuthService, staticDir string, embedded fs.FS) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(RequestLoggerMiddleware())

	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/healthz", handler.Health)

	h.Uploads.RegisterRoutes(e)
	h.Icons.RegisterRoutes(e)

	api := e.Group("/api")
	h.Auth.RegisterPublicRoutes(api)
	h.Links.RegisterPublicRoutes(api)
	h.Config.RegisterPublicRoutes(api)

	protected := api.Group("", JWTAuthMiddleware(authService))
	h.Auth.RegisterProtectedRoutes(protected)
	h.Links.RegisterProtectedRoutes(protected)
	h.Config.RegisterProtectedRoutes(protected)
	h.Uploads.RegisterProtectedRoutes(protected)
	h.Icons.RegisterProtectedRoutes(protected)
	h.Backup.RegisterRoutes(protected)

	if staticDir != "" {
		registerStatic(e, staticDir)
	} else if embedded != nil {
		registerEmbedded(e, embedded)
	}

	return e
}
