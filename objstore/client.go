// Package objstore is the S3-compatible object-store client used by the
// pipeline: get/head/put, batched fan-out, and an in-process LRU cache
// keyed by (bucket,key).
package objstore

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
)

// ErrKind classifies store failures per the worker's error-handling
// design: StoreNotFound is recoverable in some call sites, StoreError is
// always fatal to the task.
type ErrKind int

const (
	ErrKindNone ErrKind = iota
	ErrKindStoreNotFound
	ErrKindStoreError
	ErrKindMissingUserMetadata
)

// Error wraps a store failure with its classification.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func newStoreErr(kind ErrKind, format string, args ...any) error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

// IsNotFound reports whether err is (or wraps) a StoreNotFound error.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrKindStoreNotFound
	}
	return false
}

// Outcome is the result of a get/head call: a body (for get) and/or the
// object's user metadata.
type Outcome struct {
	Body []byte
	Meta map[string]string
}

// s3API is the subset of the AWS SDK v2 S3 client this package depends
// on; it exists so tests can substitute a fake.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Client is the object-store client with an in-process LRU cache.
type Client struct {
	api      s3API
	uploader *manager.Uploader // optional; set via WithUploader for multipart-aware Put
	cache    *lru
	maxFan   int // cap on concurrent fan-out legs in GetMany/PutMany
}

// Option configures a Client.
type Option func(*Client)

// WithCacheCapacityBytes sets the LRU's capacity in cached body bytes
// (plus the fixed per-entry overhead).
func WithCacheCapacityBytes(n int64) Option {
	return func(c *Client) { c.cache = newLRU(n) }
}

// WithMaxFanOut bounds the number of concurrent legs GetMany/PutMany run
// at once.
func WithMaxFanOut(n int) Option {
	return func(c *Client) { c.maxFan = n }
}

// WithUploader routes Put through an s3manager.Uploader instead of a
// plain PutObject call, so chunk/point-cloud blobs that exceed the
// manager's part-size threshold upload as multipart automatically.
func WithUploader(u *manager.Uploader) Option {
	return func(c *Client) { c.uploader = u }
}

// New builds a Client around api.
func New(api s3API, opts ...Option) *Client {
	c := &Client{api: api, cache: newLRU(256 << 20), maxFan: 16}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get fetches bucket/key. When useCache is true, a cache hit returns the
// cached Outcome unchanged (including metadata) without touching the
// API; a miss populates the cache on success.
func (c *Client) Get(ctx context.Context, bucket, key string, useCache bool) (Outcome, error) {
	if useCache {
		if v, ok := c.cache.get(bucket, key); ok {
			return v, nil
		}
	}
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return Outcome{}, classifyErr(err, bucket, key)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return Outcome{}, &Error{Kind: ErrKindStoreError, Err: err}
	}
	outcome := Outcome{Body: body, Meta: out.Metadata}
	if useCache {
		c.cache.put(bucket, key, outcome)
	}
	return outcome, nil
}

// Head fetches only bucket/key's user metadata; it never consults or
// populates the cache.
func (c *Client) Head(ctx context.Context, bucket, key string) (Outcome, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return Outcome{}, classifyErr(err, bucket, key)
	}
	return Outcome{Meta: out.Metadata}, nil
}

// Put uploads body to bucket/key with the given content type. When
// useCache is true and the put succeeds, the cache is updated: existing
// keys move to most-recently-used and have their body replaced; new keys
// are inserted at the head. Either way, entries are then evicted from the
// tail until the capacity bound holds.
func (c *Client) Put(ctx context.Context, bucket, key, contentType string, body []byte, useCache bool) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        bytes.NewReader(body),
	}
	var err error
	if c.uploader != nil {
		_, err = c.uploader.Upload(ctx, in)
	} else {
		_, err = c.api.PutObject(ctx, in)
	}
	if err != nil {
		return classifyErr(err, bucket, key)
	}
	if useCache {
		c.cache.put(bucket, key, Outcome{Body: body})
	}
	return nil
}

// Delete removes bucket/key.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return classifyErr(err, bucket, key)
	}
	return nil
}

// classifyErr distinguishes not-found from other store failures. GetObject
// surfaces a modeled NoSuchKey/NotFound exception as a smithy.APIError;
// HeadObject (no body to model the exception from) does the same via its
// ErrorCode. Both paths collapse to the same check.
func classifyErr(err error, bucket, key string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return &Error{Kind: ErrKindStoreNotFound, Err: errors.Wrapf(err, "%s/%s", bucket, key)}
		}
	}
	return &Error{Kind: ErrKindStoreError, Err: errors.Wrapf(err, "%s/%s", bucket, key)}
}
