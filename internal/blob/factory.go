package blob

import (
	"context"
	"fmt"

	"curvegraph/internal/config"
	fsstore "curvegraph/internal/infra/blob/fs"
	memorystore "curvegraph/internal/infra/blob/memory"
	s3store "curvegraph/internal/infra/blob/s3"
)

// DriverNone disables view export.
const DriverNone Driver = "none"

// Open selects a blob store from configuration. It returns a nil Store for
// the "none" driver.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverNone, "":
		return nil, nil
	case DriverFilesystem:
		store, err := fsstore.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memorystore.New(), nil
	case DriverS3:
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memorystore.New() }

// NewMockS3ForTests returns an S3 store backed by an in-process fake endpoint.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
