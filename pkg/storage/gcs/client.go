// Package gcs stores logistics center files in Cloud Storage through the
// JSON API.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/gcp"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

const (
	pingTimeout        = 5 * time.Second
	defaultContentType = "application/octet-stream"
	maxObjectBytes     = 64 << 20
)

var (
	// ErrObjectExists is returned when a create-only upload finds an object
	// already stored under the name.
	ErrObjectExists = errors.New("gcs object already exists")
	// ErrObjectNotFound is returned when the object does not exist.
	ErrObjectNotFound = errors.New("gcs object not found")
)

type Client struct {
	objects       *storage.ObjectsService
	defaultBucket string
}

// NewClient builds the storage service and lists the default bucket once so
// a wrong bucket or missing permission fails at startup.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcpCfg config.GCPConfig, logg *logger.Logger, opts ...option.ClientOption) (*Client, error) {
	bucket := strings.TrimSpace(cfg.BucketName)
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	opts = gcp.ClientOptions(gcpCfg, append([]option.ClientOption{option.WithScopes(storage.DevstorageReadWriteScope)}, opts...)...)
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	client := &Client{objects: svc.Objects, defaultBucket: bucket}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", bucket), "gcs client ready")
	}
	return client, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.objects == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := c.objects.List(c.defaultBucket).MaxResults(1).Fields("items(name)").Context(ctx).Do()
	return err
}

// CreateObject uploads data under name only if no object with that name
// exists yet. An empty bucket selects the default bucket.
func (c *Client) CreateObject(ctx context.Context, bucket, name, contentType string, data []byte) error {
	if name == "" {
		return errors.New("object name is required")
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	_, err := c.objects.Insert(c.bucket(bucket), &storage.Object{Name: name, ContentType: contentType}).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType), googleapi.ChunkSize(0)).
		IfGenerationMatch(0).
		Context(ctx).
		Do()
	if statusOf(err) == http.StatusPreconditionFailed {
		return ErrObjectExists
	}
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

// ObjectExists reports whether name is stored in bucket.
func (c *Client) ObjectExists(ctx context.Context, bucket, name string) (bool, error) {
	_, err := c.objects.Get(c.bucket(bucket), name).Fields("name").Context(ctx).Do()
	switch {
	case err == nil:
		return true, nil
	case statusOf(err) == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
}

// ReadObject downloads the object content.
func (c *Client) ReadObject(ctx context.Context, bucket, name string) ([]byte, error) {
	resp, err := c.objects.Get(c.bucket(bucket), name).Context(ctx).Download()
	if statusOf(err) == http.StatusNotFound {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > maxObjectBytes {
		return nil, fmt.Errorf("object %s exceeds %d bytes", name, maxObjectBytes)
	}
	return data, nil
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) bucket(name string) string {
	if name == "" {
		return c.defaultBucket
	}
	return name
}

func statusOf(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
