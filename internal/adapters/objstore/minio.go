// Package objstore implements the object-storage port on minio.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/skaldhq/skald/internal/core/ports"
)

type Opt func(c *storeConfig)

type storeConfig struct {
	endpoint  string
	bucket    string
	accessKey string
	secretKey string
	useSSL    bool
}

func WithEndpoint(endpoint string) Opt {
	return func(c *storeConfig) { c.endpoint = endpoint }
}

func WithBucket(bucket string) Opt {
	return func(c *storeConfig) { c.bucket = bucket }
}

func WithAccessKey(accessKey string) Opt {
	return func(c *storeConfig) { c.accessKey = accessKey }
}

func WithSecretKey(secretKey string) Opt {
	return func(c *storeConfig) { c.secretKey = secretKey }
}

func WithSSL(useSSL bool) Opt {
	return func(c *storeConfig) { c.useSSL = useSSL }
}

// Store is a minio-backed ports.ObjectStore. All keys live in one bucket;
// concurrent writers are safe because every pipeline key embeds its job id.
type Store struct {
	cfg    *storeConfig
	client *minio.Client
}

var _ ports.ObjectStore = (*Store)(nil)

func New(opts ...Opt) (*Store, error) {
	cfg := &storeConfig{useSSL: false}
	for _, o := range opts {
		o(cfg)
	}

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretKey, ""),
		Secure: cfg.useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return &Store{cfg: cfg, client: client}, nil
}

// Put stores body under key and returns the object's URL.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.cfg.bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return s.objectURL(key), nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return body, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	var infos []ports.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.cfg.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, obj.Err)
		}
		infos = append(infos, ports.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return infos, nil
}

func (s *Store) objectURL(key string) string {
	scheme := "http"
	if s.cfg.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.endpoint, s.cfg.bucket, key)
}
