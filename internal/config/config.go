package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	AppName    = "PhilCard"
	AppVersion = "1.0.0"
	AppRepo    = "https://github.com/HugPhiluu/PhilCard"
)

// UserAgent identifies outbound favicon fetches.
var UserAgent = "Mozilla/5.0 (compatible; " + AppName + "/" + AppVersion + "; +" + AppRepo + ")"

// Chrome headers for link previews (must match azuretls Chrome profile version)
const (
	ChromeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
	ChromeSecChUa   = `"Google Chrome";v="135", "Chromium";v="135", "Not-A.Brand";v="8"`
)

type Config struct {
	Addr      string
	DataDir   string
	DBPath    string
	UploadDir string
	IconDir   string
	StaticDir string
	LegacyDir string

	AdminPassword string
	LogLevel      string
	TokenTTL      time.Duration
	MaxUploadSize int64
	LoginRate     int

	MaintenanceInterval time.Duration
	NodeID              int64
	ProxyURL            string
}

func Load() Config {
	dataDir := getenv("PHILCARD_DATA_DIR", "./data")
	dbPath := getenv("PHILCARD_DB_PATH", filepath.Join(dataDir, "philcard.db"))
	uploadDir := getenv("PHILCARD_UPLOAD_DIR", filepath.Join(dataDir, "uploads"))

	staticDir := os.Getenv("PHILCARD_STATIC_DIR")
	if staticDir == "" {
		staticDir = detectStaticDir()
	}
	legacyDir := strings.TrimSpace(os.Getenv("PHILCARD_LEGACY_DIR"))
	if legacyDir != "" {
		legacyDir = filepath.Clean(legacyDir)
	}

	return Config{
		Addr:      getenv("PHILCARD_ADDR", ":8080"),
		DataDir:   filepath.Clean(dataDir),
		DBPath:    filepath.Clean(dbPath),
		UploadDir: filepath.Clean(uploadDir),
		IconDir:   filepath.Join(filepath.Clean(dataDir), "icons"),
		StaticDir: staticDir,
		LegacyDir: legacyDir,

		AdminPassword: os.Getenv("PHILCARD_ADMIN_PASSWORD"),
		LogLevel:      getenv("PHILCARD_LOG_LEVEL", "info"),
		TokenTTL:      getDuration("PHILCARD_TOKEN_TTL", 30*24*time.Hour),
		MaxUploadSize: int64(getInt("PHILCARD_MAX_UPLOAD_MB", 5)) << 20,
		LoginRate:     getInt("PHILCARD_LOGIN_RATE", 5),

		MaintenanceInterval: getDuration("PHILCARD_MAINTENANCE_INTERVAL", 6*time.Hour),
		NodeID:              int64(getInt("PHILCARD_NODE_ID", 1)),
		ProxyURL:            strings.TrimSpace(os.Getenv("PHILCARD_PROXY_URL")),
	}
}

// detectStaticDir returns the first built frontend directory found, or ""
// to fall back to the embedded client.
func detectStaticDir() string {
	candidates := []string{
		"./web/dist",
		"../web/dist",
	}
	for _, candidate := range candidates {
		indexPath := filepath.Join(candidate, "index.html")
		if info, err := os.Stat(indexPath); err == nil && !info.IsDir() {
			return filepath.Clean(candidate)
		}
	}
	return ""
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// getDuration accepts Go durations ("6h", "90m") and "0" to disable.
func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
