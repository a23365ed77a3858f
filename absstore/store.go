// Package absstore implements the abs:// driver on Azure Blob Storage.
//
// The storage account service URL is required and is read from configuration
// (storage.abs.account_url, or the STORAGE_BLOB_URL environment variable).
// Opening a store without it fails with repostore.ErrConfigurationMissing
// before any SDK call is made.
package absstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sagarc03/repostore"
)

// MaxDeleteBatch is the blob batch limit.
const MaxDeleteBatch = 256

type Config struct {
	AccountURL  string `mapstructure:"account_url" validate:"omitempty,url"`
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	PageSize    int32  `mapstructure:"page_size" validate:"gte=0,lte=5000"`
}

type Store struct {
	client   Client
	pageSize int32
	log      *slog.Logger
}

type Option func(*Store)

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithPageSize sets the list page size. Zero keeps the service default.
func WithPageSize(n int32) Option {
	return func(s *Store) {
		s.pageSize = n
	}
}

func New(client Client, opts ...Option) *Store {
	s := &Store{client: client, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds a Store from cfg. An empty account URL is rejected.
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.AccountURL == "" {
		return nil, fmt.Errorf("azure blob account url (STORAGE_BLOB_URL): %w", repostore.ErrConfigurationMissing)
	}

	client, err := Dial(cfg)
	if err != nil {
		return nil, err
	}
	return New(NewClient(client), WithLogger(log), WithPageSize(cfg.PageSize)), nil
}

func (s *Store) Scheme() repostore.Scheme { return repostore.SchemeABS }

func (s *Store) Exists(ctx context.Context, containerName, blobName string) (repostore.Existence, error) {
	err := classify(s.client.GetBlobProperties(ctx, containerName, blobName))
	switch {
	case err == nil:
		return repostore.Present, nil
	case errors.Is(err, repostore.ErrNotFound):
		return repostore.Absent, nil
	default:
		return repostore.ExistenceUnknown, err
	}
}

func (s *Store) Get(ctx context.Context, containerName, blobName string) ([]byte, error) {
	data, err := s.client.DownloadBlob(ctx, containerName, blobName)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, containerName, blobName string, data []byte) error {
	return classify(s.client.UploadBlob(ctx, containerName, blobName, data))
}

func (s *Store) List(ctx context.Context, containerName, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		marker := ""
		for {
			names, next, err := s.client.ListBlobs(ctx, containerName, prefix, marker, s.pageSize)
			if err != nil {
				yield("", classify(err))
				return
			}
			for _, n := range names {
				if !yield(n, nil) {
					return
				}
			}
			if next == "" {
				return
			}
			marker = next
		}
	}
}

// DeleteAll deletes matching blobs, snapshots included, in batches. A missing
// container has nothing to delete.
func (s *Store) DeleteAll(ctx context.Context, containerName, prefix string) error {
	start := time.Now()
	tally := repostore.NewDeleteTally("delete " + containerName)
	batch := make([]string, 0, MaxDeleteBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.deleteBatch(ctx, containerName, batch, tally)
		batch = batch[:0]
		return err
	}

	for name, err := range s.List(ctx, containerName, prefix) {
		if err != nil {
			if errors.Is(err, repostore.ErrNotFound) && tally.Empty() && len(batch) == 0 {
				return nil
			}
			if flushErr := flush(); flushErr != nil {
				return tally.Result(flushErr)
			}
			return tally.Result(err)
		}

		batch = append(batch, name)
		if len(batch) == MaxDeleteBatch {
			if err := flush(); err != nil {
				return tally.Result(err)
			}
		}
	}

	if err := flush(); err != nil {
		return tally.Result(err)
	}

	s.log.Debug("blobs deleted",
		slog.String("container", containerName),
		slog.String("prefix", prefix),
		slog.Duration("duration", time.Since(start)),
	)

	return tally.Result(nil)
}

func (s *Store) deleteBatch(ctx context.Context, containerName string, names []string, tally *repostore.DeleteTally) error {
	errs, err := s.client.DeleteBlobs(ctx, containerName, names)
	if err != nil {
		err = classify(err)
		for _, n := range names {
			tally.Fail(n, err)
		}
		return err
	}

	for i, n := range names {
		itemErr := classify(errs[i])
		if itemErr != nil && !errors.Is(itemErr, repostore.ErrNotFound) {
			tally.Fail(n, itemErr)
			continue
		}
		tally.Deleted(1)
	}
	return nil
}

// CreateContainer treats ContainerAlreadyExists as success.
func (s *Store) CreateContainer(ctx context.Context, containerName string) (repostore.ContainerHandle, error) {
	h := repostore.ContainerHandle{Scheme: repostore.SchemeABS, Name: containerName}

	if err := s.client.CreateContainer(ctx, containerName); err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			s.log.Debug("container already exists", slog.String("container", containerName))
			return h, nil
		}
		return repostore.ContainerHandle{}, classify(err)
	}

	s.log.Debug("container created", slog.String("container", containerName))
	return h, nil
}

// DeleteContainer refuses to delete a container that still holds blobs,
// because the service would delete them along with it. A missing container
// is success.
func (s *Store) DeleteContainer(ctx context.Context, h repostore.ContainerHandle) error {
	names, _, err := s.client.ListBlobs(ctx, h.Name, "", "", 1)
	if err != nil {
		err = classify(err)
		if errors.Is(err, repostore.ErrNotFound) {
			return nil
		}
		return err
	}
	if len(names) > 0 {
		return fmt.Errorf("container %s: %w", h.Name, repostore.ErrContainerNotEmpty)
	}

	err = classify(s.client.DeleteContainer(ctx, h.Name))
	if err != nil && !errors.Is(err, repostore.ErrNotFound) {
		return err
	}
	return nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound):
		return fmt.Errorf("%w: %w", repostore.ErrNotFound, err)
	case bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.AuthorizationFailure,
		bloberror.AuthorizationPermissionMismatch, bloberror.InsufficientAccountPermissions):
		return fmt.Errorf("%w: %w", repostore.ErrPermissionDenied, err)
	case bloberror.HasCode(err, bloberror.ServerBusy, bloberror.InternalError, bloberror.OperationTimedOut):
		return fmt.Errorf("%w: %w", repostore.ErrBackendUnavailable, err)
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return repostore.Classify(err)
		}
		return repostore.ClassifyStatus(respErr.StatusCode, err)
	}

	return repostore.Classify(err)
}
