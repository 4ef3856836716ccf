// Package objectstore wraps the S3 operations this system needs: content
// puts/gets against the storage bucket and the internal bucket, version
// enumeration, and conditional writes (data-model.md section 6, "Object
// store layout").
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// ErrNotFound is returned by Get/GetStream/Head when the requested key does
// not exist in the bucket.
var ErrNotFound = errors.New("objectstore: object not found")

// ErrPreconditionFailed is returned by Put/PutStream when an If-Match
// condition is supplied and does not match the object's current ETag —
// the caller lost a race with a concurrent writer (spec section 9,
// "concurrent-write safety net").
var ErrPreconditionFailed = errors.New("objectstore: precondition failed")

// API is the subset of *s3.Client this package calls, narrowed to an
// interface so callers can substitute a fake (tests) or a non-AWS
// S3-compatible client rather than always talking to real S3.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Client is a thin, bucket-agnostic wrapper over an s3.Client. Every method
// takes the target bucket explicitly since this system addresses two
// buckets (storage and internal) through the one client.
type Client struct {
	s3     API
	logger *slog.Logger
}

// New creates a Client using the default AWS credential chain
// (environment, shared config, EC2/ECS role), matching the corpus
// convention for resolving S3 credentials.
func New(ctx context.Context, logger *slog.Logger) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("objectstore: loading AWS config: %w", err)
	}

	return &Client{s3: s3.NewFromConfig(cfg), logger: logger}, nil
}

// NewFromAPI wraps an already-configured API implementation: a real
// *s3.Client pointed at a non-AWS S3-compatible endpoint (MinIO, etc.), or a
// fake used by tests.
func NewFromAPI(apiClient API, logger *slog.Logger) *Client {
	return &Client{s3: apiClient, logger: logger}
}

// PutResult carries the identifiers a caller needs to record after a
// successful write: the version the object store assigned and its ETag.
type PutResult struct {
	VersionID string
	ETag      string
}

// Put uploads body to bucket/key. If ifMatch is non-empty, the write is
// conditional on the object's current ETag matching it; ErrPreconditionFailed
// is returned on a mismatch.
func (c *Client) Put(ctx context.Context, bucket, key string, body []byte, ifMatch string) (PutResult, error) {
	return c.PutStream(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), ifMatch)
}

// PutStream is Put without buffering the whole object in memory first;
// size must be the exact number of bytes body will yield.
func (c *Client) PutStream(ctx context.Context, bucket, key string, body io.Reader, size int64, ifMatch string) (PutResult, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}

	if ifMatch != "" {
		input.IfMatch = aws.String(ifMatch)
	}

	out, err := c.s3.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailed(err) {
			return PutResult{}, ErrPreconditionFailed
		}

		return PutResult{}, fmt.Errorf("objectstore: put %s/%s: %w", bucket, key, err)
	}

	result := PutResult{ETag: aws.ToString(out.ETag)}
	if out.VersionId != nil {
		result.VersionID = *out.VersionId
	}

	c.logger.Debug("object put",
		slog.String("bucket", bucket), slog.String("key", key),
		slog.String("version_id", result.VersionID), slog.Int64("size", size))

	return result, nil
}

// Get fetches bucket/key into memory. version selects a specific
// object-store version; empty fetches the current (latest) version.
func (c *Client) Get(ctx context.Context, bucket, key, version string) ([]byte, error) {
	body, _, err := c.GetStream(ctx, bucket, key, version)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("objectstore: reading %s/%s: %w", bucket, key, err)
	}

	return data, nil
}

// GetStream fetches bucket/key, returning a reader the caller must close and
// the object's ETag. version selects a specific object-store version; empty
// fetches the current (latest) version (spec.md section 4.F: "download the
// base blob at entries[0].base_version").
func (c *Client) GetStream(ctx context.Context, bucket, key, version string) (io.ReadCloser, string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	if version != "" {
		input.VersionId = aws.String(version)
	}

	out, err := c.s3.GetObject(ctx, input)
	if err != nil {
		if isNotFound(err) {
			return nil, "", ErrNotFound
		}

		return nil, "", fmt.Errorf("objectstore: get %s/%s: %w", bucket, key, err)
	}

	return out.Body, aws.ToString(out.ETag), nil
}

// HeadResult is the subset of object metadata Head exposes.
type HeadResult struct {
	ETag string
	Size int64
}

// Head fetches metadata for bucket/key without transferring its body.
func (c *Client) Head(ctx context.Context, bucket, key string) (HeadResult, error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return HeadResult{}, ErrNotFound
		}

		return HeadResult{}, fmt.Errorf("objectstore: head %s/%s: %w", bucket, key, err)
	}

	return HeadResult{ETag: aws.ToString(out.ETag), Size: aws.ToInt64(out.ContentLength)}, nil
}

// Delete removes the current version of bucket/key. Deleting a missing key
// is not an error — S3's DeleteObject is idempotent by design, and so is
// this wrapper (matches spec.md section 4.G's DeleteRemote "already absent
// is success" note).
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objectstore: delete %s/%s: %w", bucket, key, err)
	}

	c.logger.Debug("object deleted", slog.String("bucket", bucket), slog.String("key", key))

	return nil
}

// LatestVersion is one entry of ListLatestVersions: a key's current
// (non-deleted) content version, as listed by S3's version-aware listing.
type LatestVersion struct {
	Key       string
	VersionID string
	ETag      string
	Size      int64
}

// ListLatestVersions enumerates the current version of every object under
// prefix in bucket, paging through S3's ListObjectVersions API and keeping
// only each key's latest, non-delete-marker entry.
func (c *Client) ListLatestVersions(ctx context.Context, bucket, prefix string) ([]LatestVersion, error) {
	var results []LatestVersion

	paginator := s3.NewListObjectVersionsPaginator(c.s3, &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("objectstore: listing versions in %s/%s: %w", bucket, prefix, err)
		}

		for _, v := range page.Versions {
			if !aws.ToBool(v.IsLatest) {
				continue
			}

			results = append(results, LatestVersion{
				Key:       aws.ToString(v.Key),
				VersionID: aws.ToString(v.VersionId),
				ETag:      aws.ToString(v.ETag),
				Size:      aws.ToInt64(v.Size),
			})
		}
	}

	return results, nil
}

// deleteObjectsBatchSize matches S3's DeleteObjects limit of 1000 keys per
// request (clear.py's clear_s3_prefix: "MaxKeys=1000").
const deleteObjectsBatchSize = 1000

// DeleteAllVersions deletes every version (including delete markers) of
// every object under prefix in bucket, looping until the prefix is empty
// (objectstore: ported from original_source/scripts/clear.py's
// clear_s3_prefix, which lists up to 1000 versions and batch-deletes them
// in a loop rather than a single paginated pass, since new delete markers
// created by each batch would otherwise be missed by an in-flight
// paginator). Returns the number of versions removed.
func (c *Client) DeleteAllVersions(ctx context.Context, bucket, prefix string) (int, error) {
	total := 0

	for {
		out, err := c.s3.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:  aws.String(bucket),
			Prefix:  aws.String(prefix),
			MaxKeys: aws.Int32(deleteObjectsBatchSize),
		})
		if err != nil {
			return total, fmt.Errorf("objectstore: listing versions in %s/%s: %w", bucket, prefix, err)
		}

		ids := make([]types.ObjectIdentifier, 0, len(out.Versions)+len(out.DeleteMarkers))
		for _, v := range out.Versions {
			ids = append(ids, types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
		}

		for _, m := range out.DeleteMarkers {
			ids = append(ids, types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
		}

		if len(ids) == 0 {
			return total, nil
		}

		if _, err := c.s3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		}); err != nil {
			return total, fmt.Errorf("objectstore: batch-deleting under %s/%s: %w", bucket, prefix, err)
		}

		total += len(ids)

		c.logger.Debug("deleted object version batch",
			slog.String("bucket", bucket), slog.String("prefix", prefix), slog.Int("count", len(ids)))
	}
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	var respErr *smithyhttp.ResponseError

	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404
}

func isPreconditionFailed(err error) bool {
	var respErr *smithyhttp.ResponseError

	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == 412
}
