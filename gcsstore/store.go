// Package gcsstore implements the gs:// driver on Google Cloud Storage.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"github.com/sagarc03/repostore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
)

const (
	defaultPageSize    = 1000
	defaultParallelism = 16
)

// Config holds GCS settings. ProjectID is only needed to create buckets.
type Config struct {
	ProjectID       string `mapstructure:"project_id"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	CredentialsFile string `mapstructure:"credentials_file" validate:"omitempty,file"`
	Anonymous       bool   `mapstructure:"anonymous"`
	PageSize        int    `mapstructure:"page_size" validate:"gte=0"`
	Parallelism     int    `mapstructure:"parallelism" validate:"gte=0"`
}

type Store struct {
	client      Client
	projectID   string
	pageSize    int
	parallelism int
	log         *slog.Logger
}

type Option func(*Store)

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

func WithProjectID(id string) Option {
	return func(s *Store) {
		s.projectID = id
	}
}

func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithParallelism bounds the number of concurrent object deletes.
func WithParallelism(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

func New(client Client, opts ...Option) *Store {
	s := &Store{
		client:      client,
		pageSize:    defaultPageSize,
		parallelism: defaultParallelism,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open dials GCS and builds a Store from cfg.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	client, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(NewClient(client),
		WithLogger(log),
		WithProjectID(cfg.ProjectID),
		WithPageSize(cfg.PageSize),
		WithParallelism(cfg.Parallelism),
	), nil
}

func (s *Store) Scheme() repostore.Scheme { return repostore.SchemeGS }

func (s *Store) Exists(ctx context.Context, bucket, name string) (repostore.Existence, error) {
	err := classify(s.client.StatObject(ctx, bucket, name))
	switch {
	case err == nil:
		return repostore.Present, nil
	case errors.Is(err, repostore.ErrNotFound):
		return repostore.Absent, nil
	default:
		return repostore.ExistenceUnknown, err
	}
}

func (s *Store) Get(ctx context.Context, bucket, name string) ([]byte, error) {
	data, err := s.client.ReadObject(ctx, bucket, name)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, bucket, name string, data []byte) error {
	return classify(s.client.WriteObject(ctx, bucket, name, data))
}

func (s *Store) List(ctx context.Context, bucket, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		token := ""
		for {
			names, next, err := s.client.ListObjects(ctx, bucket, prefix, token, s.pageSize)
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
			token = next
		}
	}
}

// DeleteAll deletes matching objects with bounded parallel single-object
// deletes. Objects already gone and a missing bucket count as deleted.
func (s *Store) DeleteAll(ctx context.Context, bucket, prefix string) error {
	start := time.Now()
	tally := repostore.NewDeleteTally("delete " + bucket)

	var g errgroup.Group
	g.SetLimit(s.parallelism)

	var listErr error
	for name, err := range s.List(ctx, bucket, prefix) {
		if err != nil {
			listErr = err
			break
		}
		g.Go(func() error {
			err := classify(s.client.DeleteObject(ctx, bucket, name))
			if err != nil && !errors.Is(err, repostore.ErrNotFound) {
				tally.Fail(name, err)
				return nil
			}
			tally.Deleted(1)
			return nil
		})
	}
	_ = g.Wait()

	if listErr != nil && errors.Is(listErr, repostore.ErrNotFound) && tally.Empty() {
		return nil
	}

	s.log.Debug("objects deleted",
		slog.String("bucket", bucket),
		slog.String("prefix", prefix),
		slog.Duration("duration", time.Since(start)),
	)

	return tally.Result(listErr)
}

// CreateContainer creates bucket in the configured project. A 409 conflict
// means the bucket already exists and is treated as success.
func (s *Store) CreateContainer(ctx context.Context, bucket string) (repostore.ContainerHandle, error) {
	if s.projectID == "" {
		return repostore.ContainerHandle{}, fmt.Errorf("create bucket %s: project id: %w", bucket, repostore.ErrConfigurationMissing)
	}

	h := repostore.ContainerHandle{Scheme: repostore.SchemeGS, Name: bucket}
	if err := s.client.CreateBucket(ctx, bucket, s.projectID); err != nil {
		if isConflict(err) {
			s.log.Debug("bucket already exists", slog.String("bucket", bucket))
			return h, nil
		}
		return repostore.ContainerHandle{}, classify(err)
	}

	s.log.Debug("bucket created", slog.String("bucket", bucket))
	return h, nil
}

// DeleteContainer deletes an empty bucket. GCS answers 409 for a bucket that
// still holds objects. A missing bucket is success.
func (s *Store) DeleteContainer(ctx context.Context, h repostore.ContainerHandle) error {
	err := s.client.DeleteBucket(ctx, h.Name)
	if err == nil {
		return nil
	}
	if isConflict(err) {
		return fmt.Errorf("%w: %w", repostore.ErrContainerNotEmpty, err)
	}

	err = classify(err)
	if errors.Is(err, repostore.ErrNotFound) {
		return nil
	}
	return err
}

func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %w", repostore.ErrNotFound, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return repostore.ClassifyStatus(gerr.Code, err)
	}

	return repostore.Classify(err)
}
