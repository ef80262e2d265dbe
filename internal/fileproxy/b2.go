package fileproxy

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// B2 stores objects in a Backblaze B2 bucket through its S3-compatible API.
type B2 struct {
	client *minio.Client
	bucket string
}

func NewB2(c Credentials) (*B2, error) {
	if !c.Valid() {
		return nil, ErrMissingCreds
	}
	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.KeyID, c.ApplicationKey, ""),
		Secure: true,
		Region: c.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}
	return &B2{client: client, bucket: c.Bucket}, nil
}

// Put uploads r and returns the B2 file id. B2 reports it as the S3 version
// id; buckets without versioning only return an ETag.
func (b *B2) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	info, err := b.client.PutObject(ctx, b.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", classify(err)
	}
	return objectID(info.VersionID, info.ETag), nil
}

func (b *B2) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, classify(obj.Err)
		}
		out = append(out, Object{Key: obj.Key, ID: objectID(obj.VersionID, obj.ETag)})
	}
	return out, nil
}

func (b *B2) Get(ctx context.Context, key string) (*Download, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err)
	}
	// GetObject is lazy; Stat performs the request.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, classify(err)
	}
	return &Download{Body: obj, ContentType: info.ContentType, Size: info.Size}, nil
}

func objectID(versionID, etag string) string {
	if versionID != "" {
		return versionID
	}
	return etag
}

// classify maps S3 error responses onto the package sentinels.
func classify(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Message)
	case resp.StatusCode == http.StatusNotFound, resp.Code == "NoSuchKey":
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Message)
	}
	return err
}
