package absstore

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// Client is the narrow set of container and blob calls Store needs. NewClient
// adapts an *azblob.Client to it.
type Client interface {
	// GetBlobProperties returns nil when the blob exists.
	GetBlobProperties(ctx context.Context, containerName, blobName string) error
	DownloadBlob(ctx context.Context, containerName, blobName string) ([]byte, error)
	UploadBlob(ctx context.Context, containerName, blobName string, data []byte) error
	// ListBlobs returns one page of blob names and the next marker. An empty
	// marker means the listing is complete.
	ListBlobs(ctx context.Context, containerName, prefix, marker string, maxResults int32) ([]string, string, error)
	// DeleteBlobs deletes blobs and their snapshots in one batch. The returned
	// slice holds the outcome of each blob, aligned with blobNames. A non-nil
	// error means the batch request itself failed.
	DeleteBlobs(ctx context.Context, containerName string, blobNames []string) ([]error, error)
	CreateContainer(ctx context.Context, containerName string) error
	DeleteContainer(ctx context.Context, containerName string) error
}

type sdkClient struct {
	client *azblob.Client
}

// NewClient wraps an existing azblob client.
func NewClient(client *azblob.Client) Client {
	return &sdkClient{client: client}
}

// Dial builds an azblob client for cfg.AccountURL. Shared key credentials are
// used when an account name and key are configured, otherwise the default
// Azure credential chain.
func Dial(cfg Config) (*azblob.Client, error) {
	if cfg.AccountName != "" && cfg.AccountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("shared key credential: %w", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(cfg.AccountURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("new blob client: %w", err)
		}
		return client, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("default azure credential: %w", err)
	}
	client, err := azblob.NewClient(cfg.AccountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("new blob client: %w", err)
	}
	return client, nil
}

func (c *sdkClient) GetBlobProperties(ctx context.Context, containerName, blobName string) error {
	_, err := c.client.ServiceClient().
		NewContainerClient(containerName).
		NewBlobClient(blobName).
		GetProperties(ctx, nil)
	return err
}

func (c *sdkClient) DownloadBlob(ctx context.Context, containerName, blobName string) ([]byte, error) {
	resp, err := c.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); err == nil {
		err = closeErr
	}
	return data, err
}

func (c *sdkClient) UploadBlob(ctx context.Context, containerName, blobName string, data []byte) error {
	_, err := c.client.UploadBuffer(ctx, containerName, blobName, data, nil)
	return err
}

func (c *sdkClient) ListBlobs(ctx context.Context, containerName, prefix, marker string, maxResults int32) ([]string, string, error) {
	opts := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		opts.Prefix = to.Ptr(prefix)
	}
	if marker != "" {
		opts.Marker = to.Ptr(marker)
	}
	if maxResults > 0 {
		opts.MaxResults = to.Ptr(maxResults)
	}

	pager := c.client.NewListBlobsFlatPager(containerName, opts)
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return nil, "", err
	}

	var names []string
	if resp.Segment != nil {
		for _, item := range resp.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}

	next := ""
	if resp.NextMarker != nil {
		next = *resp.NextMarker
	}
	return names, next, nil
}

func (c *sdkClient) DeleteBlobs(ctx context.Context, containerName string, blobNames []string) ([]error, error) {
	cc := c.client.ServiceClient().NewContainerClient(containerName)

	bb, err := cc.NewBatchBuilder()
	if err != nil {
		return nil, err
	}
	for _, name := range blobNames {
		err := bb.Delete(name, &container.BatchDeleteOptions{
			DeleteOptions: blob.DeleteOptions{
				DeleteSnapshots: to.Ptr(blob.DeleteSnapshotsOptionTypeInclude),
			},
		})
		if err != nil {
			return nil, err
		}
	}

	resp, err := cc.SubmitBatch(ctx, bb, nil)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]error, len(resp.Responses))
	for _, item := range resp.Responses {
		if item == nil || item.BlobName == nil {
			continue
		}
		byName[*item.BlobName] = item.Error
	}

	errs := make([]error, len(blobNames))
	for i, name := range blobNames {
		itemErr, ok := byName[name]
		if !ok {
			errs[i] = fmt.Errorf("no batch response for %s", name)
			continue
		}
		errs[i] = itemErr
	}
	return errs, nil
}

func (c *sdkClient) CreateContainer(ctx context.Context, containerName string) error {
	_, err := c.client.CreateContainer(ctx, containerName, nil)
	return err
}

func (c *sdkClient) DeleteContainer(ctx context.Context, containerName string) error {
	_, err := c.client.DeleteContainer(ctx, containerName, nil)
	return err
}
