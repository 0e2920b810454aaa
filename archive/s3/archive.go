package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Archiver copies deleted resource content into an S3 bucket, keyed as
// <root>/<name>. Repeated deletes of recreated resources overwrite the
// previous archive object.
type S3Archiver struct {
	client     *minio.Client
	bucketName string
}

// NewS3Archiver creates an archiver writing to the given bucket.
func NewS3Archiver(endpoint, bucketName, accessKey, secretKey string, useSsl bool) (*S3Archiver, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSsl,
	})
	if err != nil {
		return nil, err
	}

	return &S3Archiver{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Name returns the identifier name defined for this archiver.
func (*S3Archiver) Name() string {
	return "s3"
}

// Verify checks that the configured bucket exists and is reachable.
func (sa *S3Archiver) Verify(ctx context.Context) error {
	exists, err := sa.client.BucketExists(ctx, sa.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", sa.bucketName)
	}

	return nil
}

// Store writes size bytes from reader under <root>/<name>.
func (sa *S3Archiver) Store(ctx context.Context, root, name string, reader io.Reader, size int64) error {
	objectName := root + "/" + name

	_, err := sa.client.PutObject(ctx, sa.bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})

	return err
}
