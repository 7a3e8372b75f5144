package service

import (
	"context"
	"errors"
	"time"

	"github.com/HugPhiluu/PhilCard/internal/logger"
)

// uploadGracePeriod keeps fresh uploads that the client has not saved into a
// link or profile yet.
const uploadGracePeriod = time.Hour

// MaintenanceService bundles the periodic housekeeping jobs.
type MaintenanceService interface {
	RunAll(ctx context.Context) error
}

type maintenanceService struct {
	icons   IconService
	uploads UploadService
}

func NewMaintenanceService(icons IconService, uploads UploadService) MaintenanceService {
	return &maintenanceService{icons: icons, uploads: uploads}
}

func (s *maintenanceService) RunAll(ctx context.Context) error {
	var errs []error

	if res, err := s.icons.Backfill(ctx); err != nil {
		errs = append(errs, err)
	} else if res.Total > 0 {
		logger.Info("favicon backfill done", "module", "service", "action", "fetch", "resource", "icon", "result", "ok", "total", res.Total, "updated", res.Updated, "failed", res.Failed)
	}

	if n, err := s.icons.PruneUnused(ctx); err != nil {
		errs = append(errs, err)
	} else if n > 0 {
		logger.Info("unused icons removed", "module", "service", "action", "delete", "resource", "icon", "result", "ok", "count", n)
	}

	if n, err := s.uploads.PruneUnreferenced(ctx, uploadGracePeriod); err != nil {
		errs = append(errs, err)
	} else if n > 0 {
		logger.Info("unreferenced uploads removed", "module", "service", "action", "delete", "resource", "upload", "result", "ok", "count", n)
	}

	return errors.Join(errs...)
}
