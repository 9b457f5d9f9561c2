// Package storage stores goods pictures on a local directory or an
// S3-compatible bucket.
//
//	disk, err := storage.Open(config.StorageDefault())
//	url, err := storage.StoreImage(ctx, disk, "goods", fileHeader)
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/farmshop/storefront/config"
)

var ErrNotFound = errors.New("storage: file not found")

// Disk is implemented by every driver. Paths use forward slashes.
type Disk interface {
	Put(ctx context.Context, path string, r io.Reader, contentType string) error
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	// URL returns the public address of path.
	URL(path string) string
}

// Open builds the named disk from configuration ("local" or "s3").
func Open(ctx context.Context, name string) (Disk, error) {
	switch name {
	case "", "local":
		return NewLocal(config.StorageLocalRoot(), config.StorageURL())
	case "s3":
		return NewS3(ctx, S3Config{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			BaseURL:  config.StorageS3URL(),
		})
	}
	return nil, fmt.Errorf("storage: unknown disk %q", name)
}
