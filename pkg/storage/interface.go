package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an export does not exist
var ErrNotFound = errors.New("export not found")

// Storage defines where finished exports are written
type Storage interface {
	// Save writes an export under name, replacing any previous one
	Save(ctx context.Context, name string, data []byte) error

	// Load reads an export by name
	Load(ctx context.Context, name string) ([]byte, error)

	// List returns the names of stored exports in lexical order
	List(ctx context.Context) ([]string, error)

	// Delete removes an export
	Delete(ctx context.Context, name string) error

	// Location describes where name is stored, for messages
	Location(name string) string

	// Close cleans up any resources
	Close() error
}

// StorageConfig holds configuration for storage backends
type StorageConfig struct {
	Type string `json:"type" yaml:"type" mapstructure:"type"` // "memory", "file", "s3"

	// File storage config
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" mapstructure:"dir"`

	// S3 storage config
	S3Bucket    string `json:"s3_bucket,omitempty" yaml:"s3_bucket,omitempty" mapstructure:"s3_bucket"`
	S3Region    string `json:"s3_region,omitempty" yaml:"s3_region,omitempty" mapstructure:"s3_region"`
	S3Prefix    string `json:"s3_prefix,omitempty" yaml:"s3_prefix,omitempty" mapstructure:"s3_prefix"`
	S3Endpoint  string `json:"s3_endpoint,omitempty" yaml:"s3_endpoint,omitempty" mapstructure:"s3_endpoint"`
	S3AccessKey string `json:"s3_access_key,omitempty" yaml:"s3_access_key,omitempty" mapstructure:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key,omitempty" yaml:"s3_secret_key,omitempty" mapstructure:"s3_secret_key"`
}
