package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// NewStorage creates a storage instance based on the configuration
func NewStorage(ctx context.Context, config *StorageConfig) (Storage, error) {
	switch config.Type {
	case "memory":
		return NewMemoryStorage(), nil

	case "file", "":
		if config.Dir == "" {
			config.Dir = "."
		}
		return NewFileStorage(config.Dir)

	case "s3":
		return NewS3Storage(ctx, S3Options{
			Bucket:    config.S3Bucket,
			Region:    config.S3Region,
			Prefix:    config.S3Prefix,
			Endpoint:  config.S3Endpoint,
			AccessKey: config.S3AccessKey,
			SecretKey: config.S3SecretKey,
		})

	default:
		return nil, fmt.Errorf("unknown storage type: %s", config.Type)
	}
}

// validateName rejects names that would escape the storage root
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("export name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name != path.Clean(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid export name: %q", name)
	}
	return nil
}
