// Package media turns normalized image bytes into the image references stored
// on a game: inline data URLs, or object-storage URLs when MinIO is configured.
package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ayangquest/questapi/internal/imaging"
)

// Publisher stores an encoded image and returns the reference to embed in a game.
type Publisher interface {
	Publish(ctx context.Context, data []byte, contentType string) (string, error)
}

// Inline embeds images directly in the game document.
type Inline struct{}

func (Inline) Publish(_ context.Context, data []byte, _ string) (string, error) {
	return imaging.DataURL(data), nil
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the externally reachable base for objects, e.g. a CDN.
	// Defaults to the endpoint.
	PublicURL string
}

// MinIO uploads images to a bucket. Uploads that fail fall back to inline
// data URLs so a storage outage never blocks game creation.
type MinIO struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *slog.Logger
}

func NewMinIO(ctx context.Context, logger *slog.Logger, cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %q: %w", cfg.Bucket, err)
		}
		logger.Info("created minio bucket", "bucket", cfg.Bucket)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		publicURL = scheme + cfg.Endpoint
	}

	return &MinIO{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}, nil
}

func (m *MinIO) Publish(ctx context.Context, data []byte, contentType string) (string, error) {
	name := objectName(contentType)
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		m.logger.Warn("image upload failed, embedding inline", "object", name, "error", err)
		return imaging.DataURL(data), nil
	}
	return m.publicURL + "/" + m.bucket + "/" + name, nil
}

// Check reports whether the bucket is reachable.
func (m *MinIO) Check(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

func objectName(contentType string) string {
	ext := ".bin"
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	}
	return "avatars/" + uuid.NewString() + ext
}
