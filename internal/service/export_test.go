package service

import (
	"time"

	"github.com/HugPhiluu/PhilCard/internal/network"
	"github.com/HugPhiluu/PhilCard/internal/repository"
)

// SetAuthClockForTest replaces the auth service clock.
func SetAuthClockForTest(svc AuthService, now func() time.Time) {
	svc.(*authService).now = now
}

// NewIconServiceForTest points the favicon API at endpoint ("" skips it).
func NewIconServiceForTest(store *FileStore, links repository.LinkRepository, cf *network.ClientFactory, endpoint string) IconService {
	svc := NewIconService(store, links, cf).(*iconService)
	svc.faviconEndpoint = endpoint
	return svc
}

// SetIconClockForTest replaces the icon service clock.
func SetIconClockForTest(svc IconService, now func() time.Time) {
	svc.(*iconService).now = now
}

// NewPreviewServiceForTest fetches through the plain HTTP client of cf.
func NewPreviewServiceForTest(cf *network.ClientFactory) PreviewService {
	return newPreviewService(httpFetcher(cf))
}

// SetUploadClockForTest replaces the upload service clock.
func SetUploadClockForTest(svc UploadService, now func() time.Time) {
	svc.(*uploadService).now = now
}

// SetBackupClockForTest replaces the backup service clock.
func SetBackupClockForTest(svc BackupService, now func() time.Time) {
	svc.(*backupService).now = now
}

// DetectImageFormatExtForTest exposes image format detection for tests.
func DetectImageFormatExtForTest(data []byte) (string, error) {
	format, err := detectImageFormat(data)
	if err != nil {
		return "", err
	}
	return format.ext, nil
}

// CropSquareForTest exposes the avatar crop for tests.
func CropSquareForTest(data []byte) ([]byte, error) {
	format, err := detectImageFormat(data)
	if err != nil {
		return nil, err
	}
	return cropSquare(data, format)
}

// IconFilenameForTest exposes favicon file naming for tests.
func IconFilenameForTest(siteURL string) string {
	return iconFilename(siteURL)
}
