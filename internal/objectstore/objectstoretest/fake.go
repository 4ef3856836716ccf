// Package objectstoretest provides an in-memory fake of the S3 surface
// objectstore.Client calls, for use by that package's own tests and by
// downstream packages (internal/transfer, internal/syncengine) that need an
// objectstore.Client backed by something other than real S3.
package objectstoretest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// API is an in-memory stand-in for objectstore.API, keyed by bucket/key
// pairs. The zero value is not usable; construct with New.
type API struct {
	objects map[string][]byte
	etags   map[string]string
	nextTag int
}

// New returns an empty fake.
func New() *API {
	return &API{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (f *API) objKey(bucket, key string) string { return bucket + "/" + key }

func (f *API) PutObject(_ context.Context, p *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	k := f.objKey(aws.ToString(p.Bucket), aws.ToString(p.Key))

	if ifMatch := aws.ToString(p.IfMatch); ifMatch != "" {
		if f.etags[k] != ifMatch {
			return nil, &smithyhttp.ResponseError{
				Response: &smithyhttp.Response{Response: &http.Response{StatusCode: 412}},
			}
		}
	}

	data, err := io.ReadAll(p.Body)
	if err != nil {
		return nil, err
	}

	f.nextTag++
	etag := "etag-" + strconv.Itoa(f.nextTag)
	f.objects[k] = data
	f.etags[k] = etag

	return &s3.PutObjectOutput{ETag: aws.String(etag), VersionId: aws.String("v1")}, nil
}

func (f *API) GetObject(_ context.Context, p *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	k := f.objKey(aws.ToString(p.Bucket), aws.ToString(p.Key))

	data, ok := f.objects[k]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data)), ETag: aws.String(f.etags[k])}, nil
}

func (f *API) HeadObject(_ context.Context, p *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	k := f.objKey(aws.ToString(p.Bucket), aws.ToString(p.Key))

	data, ok := f.objects[k]
	if !ok {
		return nil, &types.NotFound{}
	}

	return &s3.HeadObjectOutput{ETag: aws.String(f.etags[k]), ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *API) DeleteObject(_ context.Context, p *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	k := f.objKey(aws.ToString(p.Bucket), aws.ToString(p.Key))
	delete(f.objects, k)
	delete(f.etags, k)

	return &s3.DeleteObjectOutput{}, nil
}

func (f *API) DeleteObjects(_ context.Context, p *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	deleted := make([]types.DeletedObject, 0, len(p.Delete.Objects))

	for _, obj := range p.Delete.Objects {
		k := f.objKey(aws.ToString(p.Bucket), aws.ToString(obj.Key))
		delete(f.objects, k)
		delete(f.etags, k)

		deleted = append(deleted, types.DeletedObject{Key: obj.Key, VersionId: obj.VersionId})
	}

	return &s3.DeleteObjectsOutput{Deleted: deleted}, nil
}

func (f *API) ListObjectVersions(_ context.Context, p *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	var versions []types.ObjectVersion

	bucket := aws.ToString(p.Bucket)
	bucketPrefix := bucket + "/"
	prefix := f.objKey(bucket, aws.ToString(p.Prefix))

	for k, data := range f.objects {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			continue
		}

		// Real S3 keys are bucket-relative; strip the fake's internal
		// bucket-qualified storage key back down to that shape.
		rawKey := k[len(bucketPrefix):]

		versions = append(versions, types.ObjectVersion{
			Key:       aws.String(rawKey),
			VersionId: aws.String("v1"),
			ETag:      aws.String(f.etags[k]),
			Size:      aws.Int64(int64(len(data))),
			IsLatest:  aws.Bool(true),
		})
	}

	return &s3.ListObjectVersionsOutput{Versions: versions}, nil
}
