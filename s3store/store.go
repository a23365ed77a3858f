// Package s3store implements the s3:// driver on top of aws-sdk-go-v2. It
// works against AWS and S3-compatible services such as MinIO.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sagarc03/repostore"
)

// defaultRegion is used when neither config nor the SDK chain names one.
const defaultRegion = "us-east-1"

// MaxDeleteBatch is the DeleteObjects limit.
const MaxDeleteBatch = 1000

// Client is the subset of *s3.Client used by Store.
type Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

var _ Client = (*s3.Client)(nil)

// Config holds connection settings. Empty fields fall back to the AWS SDK
// default chain (AWS_REGION, AWS_PROFILE, AWS_ENDPOINT_URL_S3, ...).
type Config struct {
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint" validate:"omitempty,url"`
	UsePathStyle    bool          `mapstructure:"use_path_style"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	BucketWait      time.Duration `mapstructure:"bucket_wait"`
	PageSize        int32         `mapstructure:"page_size" validate:"gte=0,lte=1000"`
}

type Store struct {
	client     Client
	region     string
	bucketWait time.Duration
	pageSize   int32
	log        *slog.Logger
}

type Option func(*Store)

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRegion sets the location constraint used when creating buckets.
func WithRegion(region string) Option {
	return func(s *Store) {
		s.region = region
	}
}

// WithBucketWait makes CreateContainer wait up to d for the bucket to become
// visible.
func WithBucketWait(d time.Duration) Option {
	return func(s *Store) {
		s.bucketWait = d
	}
}

// WithPageSize sets the ListObjectsV2 page size. Zero keeps the service
// default.
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

// Open builds a Store from cfg using the AWS SDK default configuration chain.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	region := awsCfg.Region
	if region == "" {
		region = defaultRegion
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.Region = region
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return New(client,
		WithLogger(log),
		WithRegion(region),
		WithBucketWait(cfg.BucketWait),
		WithPageSize(cfg.PageSize),
	), nil
}

func (s *Store) Scheme() repostore.Scheme { return repostore.SchemeS3 }

// Region is the region buckets are created in.
func (s *Store) Region() string { return s.region }

func (s *Store) Exists(ctx context.Context, bucket, key string) (repostore.Existence, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		err = classify(err)
		if errors.Is(err, repostore.ErrNotFound) {
			return repostore.Absent, nil
		}
		return repostore.ExistenceUnknown, err
	}
	return repostore.Present, nil
}

func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify(err)
	}
	defer func() {
		if closeErr := out.Body.Close(); closeErr != nil {
			s.log.Warn("failed to close object body", "err", closeErr)
		}
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", classify(err))
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, bucket, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return classify(err)
}

func (s *Store) List(ctx context.Context, bucket, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
		if prefix != "" {
			input.Prefix = aws.String(prefix)
		}
		if s.pageSize > 0 {
			input.MaxKeys = aws.Int32(s.pageSize)
		}

		p := s3.NewListObjectsV2Paginator(s.client, input)
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				yield("", classify(err))
				return
			}
			for _, obj := range page.Contents {
				if !yield(aws.ToString(obj.Key), nil) {
					return
				}
			}
		}
	}
}

// DeleteAll lists prefix and deletes the keys in DeleteObjects batches. A
// missing bucket has nothing to delete.
func (s *Store) DeleteAll(ctx context.Context, bucket, prefix string) error {
	start := time.Now()
	tally := repostore.NewDeleteTally("delete " + bucket)
	batch := make([]string, 0, MaxDeleteBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.deleteBatch(ctx, bucket, batch, tally)
		batch = batch[:0]
		return err
	}

	for key, err := range s.List(ctx, bucket, prefix) {
		if err != nil {
			if errors.Is(err, repostore.ErrNotFound) && tally.Empty() && len(batch) == 0 {
				return nil
			}
			if flushErr := flush(); flushErr != nil {
				return tally.Result(flushErr)
			}
			return tally.Result(err)
		}

		batch = append(batch, key)
		if len(batch) == MaxDeleteBatch {
			if err := flush(); err != nil {
				return tally.Result(err)
			}
		}
	}

	if err := flush(); err != nil {
		return tally.Result(err)
	}

	s.log.Debug("objects deleted",
		slog.String("bucket", bucket),
		slog.String("prefix", prefix),
		slog.Duration("duration", time.Since(start)),
	)

	return tally.Result(nil)
}

// deleteBatch returns an error only when the request itself failed. Every
// key of a failed request is recorded as unconfirmed.
func (s *Store) deleteBatch(ctx context.Context, bucket string, keys []string, tally *repostore.DeleteTally) error {
	objects := make([]types.ObjectIdentifier, len(keys))
	for i, k := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(k)}
	}

	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		err = classify(err)
		for _, k := range keys {
			tally.Fail(k, err)
		}
		return err
	}

	failed := 0
	for _, e := range out.Errors {
		code := aws.ToString(e.Code)
		if code == "NoSuchKey" {
			continue
		}
		failed++
		tally.Fail(aws.ToString(e.Key), classify(&smithy.GenericAPIError{
			Code:    code,
			Message: aws.ToString(e.Message),
		}))
	}
	tally.Deleted(len(keys) - failed)

	return nil
}

// CreateContainer creates bucket. A bucket already owned by the caller is
// success; a name taken by another account is ErrPermissionDenied.
func (s *Store) CreateContainer(ctx context.Context, bucket string) (repostore.ContainerHandle, error) {
	h := repostore.ContainerHandle{Scheme: repostore.SchemeS3, Name: bucket}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	_, err := s.client.CreateBucket(ctx, input)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var taken *types.BucketAlreadyExists
		switch {
		case errors.As(err, &owned):
			s.log.Debug("bucket already owned", slog.String("bucket", bucket))
			return h, nil
		case errors.As(err, &taken):
			return repostore.ContainerHandle{}, fmt.Errorf("%w: bucket %s owned by another account: %w", repostore.ErrPermissionDenied, bucket, err)
		default:
			return repostore.ContainerHandle{}, classify(err)
		}
	}

	if s.bucketWait > 0 {
		w := s3.NewBucketExistsWaiter(s.client)
		if err := w.Wait(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}, s.bucketWait); err != nil {
			return repostore.ContainerHandle{}, fmt.Errorf("wait for bucket: %w", classify(err))
		}
	}

	s.log.Debug("bucket created", slog.String("bucket", bucket))
	return h, nil
}

// DeleteContainer deletes an empty bucket. A missing bucket is success.
func (s *Store) DeleteContainer(ctx context.Context, h repostore.ContainerHandle) error {
	_, err := s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(h.Name)})
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "BucketNotEmpty" {
		return fmt.Errorf("%w: %w", repostore.ErrContainerNotEmpty, err)
	}

	err = classify(err)
	if errors.Is(err, repostore.ErrNotFound) {
		return nil
	}
	return err
}

// classify maps S3 error codes onto the repostore taxonomy, falling back to
// the HTTP status and transport classification.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: %w", repostore.ErrNotFound, err)
		case "AccessDenied", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
			return fmt.Errorf("%w: %w", repostore.ErrPermissionDenied, err)
		case "SlowDown", "ServiceUnavailable", "InternalError", "RequestTimeout":
			return fmt.Errorf("%w: %w", repostore.ErrBackendUnavailable, err)
		}
	}

	return repostore.Classify(err)
}
