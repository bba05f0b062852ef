package storage

import (
	"fmt"

	"cardrender/internal/adapters/storage/localfs"
	"cardrender/internal/adapters/storage/r2"
	"cardrender/internal/config"
	"cardrender/internal/ports"
)

// Provider is the storage contract used by the pipeline and the HTTP layer.
type Provider = ports.StorageProvider

func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Storage.Provider {
	case config.ProviderR2:
		return r2.NewClient(r2.Config{
			Endpoint:        cfg.R2Endpoint(),
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			Bucket:          cfg.R2.BucketName,
		}), nil

	case config.ProviderLocalFS:
		return localfs.New(cfg.Storage.LocalRoot), nil

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}
}
