package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/andresuchdata/autopo-py/replenishment/internal/config"
	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectInfo represents metadata for an archived object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Archive stores finished run records on S3-compatible storage.
type Archive struct {
	client *minio.Client
	bucket string
}

// normalizeEndpoint strips any scheme; minio-go takes host[:port] and a
// separate TLS flag.
func normalizeEndpoint(endpoint string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), false
	}
	return strings.TrimPrefix(endpoint, "//"), useSSL
}

// NewArchive connects to the bucket, creating it when missing.
func NewArchive(ctx context.Context, cfg config.StorageConfig) (*Archive, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket must be provided")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	endpoint, secure := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage bucket check failed: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("storage bucket create failed: %w", err)
		}
	}

	return &Archive{client: client, bucket: cfg.Bucket}, nil
}

// KindPrefix is the folder holding every archived run of a kind.
func KindPrefix(kind domain.RunKind) string {
	return "runs/" + strings.ToLower(string(kind)) + "/"
}

// ObjectKey is runs/<kind>/<yyyy-mm-dd>/<runId>.json, dated by start time.
func ObjectKey(run *domain.RunRecord) string {
	return KindPrefix(run.Kind) + run.StartedAt.UTC().Format("2006-01-02") + "/" + run.RunID + ".json"
}

func (a *Archive) Archive(ctx context.Context, run *domain.RunRecord, payload []byte) error {
	key := ObjectKey(run)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"run-status": string(run.Status),
		},
	})
	if err != nil {
		return fmt.Errorf("storage upload %s failed: %w", key, err)
	}
	return nil
}

// ListObjects lists archived runs under prefix.
func (a *Archive) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	results := make([]ObjectInfo, 0)
	for object := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("storage list failed: %w", object.Err)
		}
		results = append(results, ObjectInfo{Key: object.Key, Size: object.Size})
	}
	return results, nil
}
