package s3store_test

import (
	"bytes"
	"context"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeClient is an in-memory S3 with just enough behaviour for the driver.
type fakeClient struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	owners  map[string]string

	// failKeys makes DeleteObjects report these keys with the given code.
	failKeys map[string]string
	// headErr, when set, is returned by every HeadObject call.
	headErr error
	// deleteErr, when set, is returned by every DeleteObjects call.
	deleteErr error

	deleteCalls int
	listCalls   int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		buckets:  make(map[string]map[string][]byte),
		owners:   make(map[string]string),
		failKeys: make(map[string]string),
	}
}

func (f *fakeClient) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.buckets[*in.Bucket][*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[*in.Bucket]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	data, ok := b[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[*in.Bucket]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	b[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	b, ok := f.buckets[*in.Bucket]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}

	prefix := aws.ToString(in.Prefix)
	var keys []string
	for _, k := range slices.Sorted(maps.Keys(b)) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	// The continuation token is the last key returned, so deletes between
	// pages do not shift the listing.
	start := 0
	if in.ContinuationToken != nil {
		start, _ = slices.BinarySearch(keys, *in.ContinuationToken)
		if start < len(keys) && keys[start] == *in.ContinuationToken {
			start++
		}
	}
	limit := int(aws.ToInt32(in.MaxKeys))
	if limit == 0 {
		limit = 1000
	}
	end := min(start+limit, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end-1])
	}
	return out, nil
}

func (f *fakeClient) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++

	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	if len(in.Delete.Objects) > 1000 {
		return nil, &smithy.GenericAPIError{Code: "MalformedXML"}
	}

	out := &s3.DeleteObjectsOutput{}
	b := f.buckets[*in.Bucket]
	for _, obj := range in.Delete.Objects {
		if code, ok := f.failKeys[*obj.Key]; ok {
			out.Errors = append(out.Errors, types.Error{Key: obj.Key, Code: aws.String(code), Message: aws.String("denied")})
			continue
		}
		delete(b, *obj.Key)
	}
	return out, nil
}

func (f *fakeClient) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[*in.Bucket]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeClient) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if owner, ok := f.owners[*in.Bucket]; ok {
		if owner == "other" {
			return nil, &types.BucketAlreadyExists{}
		}
		return nil, &types.BucketAlreadyOwnedByYou{}
	}
	f.buckets[*in.Bucket] = make(map[string][]byte)
	f.owners[*in.Bucket] = "me"
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeClient) DeleteBucket(_ context.Context, in *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[*in.Bucket]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	if len(b) > 0 {
		return nil, &smithy.GenericAPIError{Code: "BucketNotEmpty", Message: "The bucket you tried to delete is not empty"}
	}
	delete(f.buckets, *in.Bucket)
	delete(f.owners, *in.Bucket)
	return &s3.DeleteBucketOutput{}, nil
}

func (f *fakeClient) seed(bucket string, keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[bucket]; !ok {
		f.buckets[bucket] = make(map[string][]byte)
		f.owners[bucket] = "me"
	}
	for _, k := range keys {
		f.buckets[bucket][k] = []byte(k)
	}
}
