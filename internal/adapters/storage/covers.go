// Package storage puts room cover images into an S3 compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dkeye/voicerooms/internal/domain"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL is the base under which objects are served, e.g.
	// https://cdn.example.org/covers-bucket. Stored cover URLs are built on it.
	PublicURL string
}

type CoverStorage struct {
	cfg    Config
	client *minio.Client
}

var ErrNoPublicURL = errors.New("storage: public url is required")

func New(cfg Config) (*CoverStorage, error) {
	if strings.TrimSpace(cfg.PublicURL) == "" {
		return nil, ErrNoPublicURL
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: new client: %w", err)
	}
	return &CoverStorage{cfg: cfg, client: cl}, nil
}

func (s *CoverStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	return s.client.SetBucketPolicy(ctx, s.cfg.Bucket, readPolicy(s.cfg.Bucket))
}

// readPolicy lets anyone GET objects under covers/.
func readPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow",`+
		`"Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/covers/*"]}]}`, bucket)
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// coverKey versions the object so a new cover never serves a cached old one.
func coverKey(roomID domain.RoomID, contentType string, at time.Time) string {
	return fmt.Sprintf("covers/%s/%d%s", roomID, at.UnixNano(), extensions[contentType])
}

func (s *CoverStorage) PutCover(ctx context.Context, roomID domain.RoomID, contentType string, data []byte) (string, error) {
	key := coverKey(roomID, contentType, time.Now())
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	return s.url(key), nil
}

func (s *CoverStorage) url(key string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + key
}
