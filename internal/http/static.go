package http

import (
	"io/fs"
	nethttp "net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/HugPhiluu/PhilCard/internal/logger"
)

const (
	indexPage = "index.html"
	adminPage = "admin.html"
)

func registerStatic(e *echo.Echo, dir string) {
	indexPath := filepath.Join(dir, indexPage)
	info, err := os.Stat(indexPath)
	if err != nil || info.IsDir() {
		logger.Warn("static index missing", "module", "http", "action", "request", "resource", "http", "result", "failed", "path", indexPath)
		return
	}

	logger.Info("static assets enabled", "module", "http", "action", "request", "resource", "http", "result", "ok", "dir", dir)

	fileServer := nethttp.FileServer(nethttp.Dir(dir))

	e.GET("/*", func(c echo.Context) error {
		requestPath := c.Request().URL.Path
		if isAPIPath(requestPath) {
			return echo.ErrNotFound
		}

		cleanPath := strings.TrimPrefix(path.Clean(requestPath), "/")
		if page := pageFor(cleanPath); page != "" {
			if page == adminPage {
				if info, err := os.Stat(filepath.Join(dir, adminPage)); err == nil && !info.IsDir() {
					return c.File(filepath.Join(dir, adminPage))
				}
			}
			return c.File(indexPath)
		}

		candidate := filepath.Join(dir, cleanPath)
		fileInfo, err := os.Stat(candidate)
		if err == nil && !fileInfo.IsDir() {
			logger.Debug("static file served", "module", "http", "action", "fetch", "resource", "http", "result", "ok", "path", requestPath)
			fileServer.ServeHTTP(c.Response(), c.Request())
			return nil
		}

		logger.Debug("static fallback", "module", "http", "action", "fetch", "resource", "http", "result", "ok", "path", requestPath)
		return c.File(indexPath)
	})
}

// registerEmbedded serves the client compiled into the binary.
func registerEmbedded(e *echo.Echo, assets fs.FS) {
	if _, err := fs.Stat(assets, indexPage); err != nil {
		logger.Warn("embedded index missing", "module", "http", "action", "request", "resource", "http", "result", "failed")
		return
	}
	logger.Info("embedded client enabled", "module", "http", "action", "request", "resource", "http", "result", "ok")

	e.GET("/*", func(c echo.Context) error {
		requestPath := c.Request().URL.Path
		if isAPIPath(requestPath) {
			return echo.ErrNotFound
		}

		cleanPath := strings.TrimPrefix(path.Clean(requestPath), "/")
		if page := pageFor(cleanPath); page != "" {
			return echo.StaticFileHandler(page, assets)(c)
		}
		if info, err := fs.Stat(assets, cleanPath); err == nil && !info.IsDir() {
			return echo.StaticFileHandler(cleanPath, assets)(c)
		}
		return echo.StaticFileHandler(indexPage, assets)(c)
	})
}

// pageFor maps page routes to their HTML file, or "" for assets.
func pageFor(cleanPath string) string {
	switch cleanPath {
	case "", ".", indexPage:
		return indexPage
	case "admin", adminPage:
		return adminPage
	}
	if strings.HasPrefix(cleanPath, "admin/") {
		return adminPage
	}
	return ""
}

func isAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}
