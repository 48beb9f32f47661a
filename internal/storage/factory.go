package storage

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"filedrop/internal/config"
)

// New builds the configured backend and applies the upload size policy.
func New(ctx context.Context, cfg *config.AppConfig) (Storage, error) {
	var (
		s   Storage
		err error
	)
	switch cfg.Storage.Backend {
	case config.BackendLocal, "":
		s, err = NewLocal(afero.NewOsFs(), cfg.Storage.DropDir())
	case config.BackendMemory:
		s, err = NewMemory()
	case config.BackendMinIO:
		s, err = NewMinIO(cfg.MinIO)
	case config.BackendGCS:
		s, err = NewGCS(ctx, cfg.GCS)
	case config.BackendAzure:
		s, err = NewAzureBlob(ctx, cfg.Azure)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}
	return WithMaxBytes(s, cfg.Storage.MaxUploadBytes), nil
}
