package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Client is the narrow set of bucket and object calls Store needs. NewClient
// adapts a *storage.Client to it.
type Client interface {
	// StatObject returns nil when the object exists.
	StatObject(ctx context.Context, bucket, name string) error
	ReadObject(ctx context.Context, bucket, name string) ([]byte, error)
	WriteObject(ctx context.Context, bucket, name string, data []byte) error
	// ListObjects returns one page of names and the token of the next page.
	// An empty token means the listing is complete.
	ListObjects(ctx context.Context, bucket, prefix, pageToken string, pageSize int) ([]string, string, error)
	DeleteObject(ctx context.Context, bucket, name string) error
	CreateBucket(ctx context.Context, bucket, projectID string) error
	DeleteBucket(ctx context.Context, bucket string) error
}

type sdkClient struct {
	client *storage.Client
}

// NewClient wraps an existing storage client.
func NewClient(client *storage.Client) Client {
	return &sdkClient{client: client}
}

// Dial creates a storage client from cfg. Without a credentials file the
// client uses Application Default Credentials.
func Dial(ctx context.Context, cfg Config) (*storage.Client, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new storage client: %w", err)
	}
	return client, nil
}

func (c *sdkClient) StatObject(ctx context.Context, bucket, name string) error {
	_, err := c.client.Bucket(bucket).Object(name).Attrs(ctx)
	return err
}

func (c *sdkClient) ReadObject(ctx context.Context, bucket, name string) ([]byte, error) {
	r, err := c.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if closeErr := r.Close(); err == nil {
		err = closeErr
	}
	return data, err
}

func (c *sdkClient) WriteObject(ctx context.Context, bucket, name string, data []byte) error {
	w := c.client.Bucket(bucket).Object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (c *sdkClient) ListObjects(ctx context.Context, bucket, prefix, pageToken string, pageSize int) ([]string, string, error) {
	q := &storage.Query{Prefix: prefix}
	if err := q.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, "", err
	}

	it := c.client.Bucket(bucket).Objects(ctx, q)
	pager := iterator.NewPager(it, pageSize, pageToken)

	var attrs []*storage.ObjectAttrs
	next, err := pager.NextPage(&attrs)
	if err != nil {
		return nil, "", err
	}

	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	return names, next, nil
}

func (c *sdkClient) DeleteObject(ctx context.Context, bucket, name string) error {
	return c.client.Bucket(bucket).Object(name).Delete(ctx)
}

func (c *sdkClient) CreateBucket(ctx context.Context, bucket, projectID string) error {
	return c.client.Bucket(bucket).Create(ctx, projectID, nil)
}

func (c *sdkClient) DeleteBucket(ctx context.Context, bucket string) error {
	return c.client.Bucket(bucket).Delete(ctx)
}

// isConflict reports a 409 from the JSON API.
func isConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 409
}
