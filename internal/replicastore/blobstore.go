// Package replicastore implements the reference replica's persistence: blob
// payloads in S3, message metadata in DynamoDB, and an optional Redis
// read-through cache in front of the metadata lookup.
package replicastore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// BlobStore persists and retrieves blob payload bytes, keyed by blob id.
type BlobStore interface {
	Get(ctx context.Context, blobID string) ([]byte, error)
	Put(ctx context.Context, blobID string, data []byte) error
	Delete(ctx context.Context, blobID string) error
}

// S3BlobStore implements BlobStore on top of AWS S3. One object per blob id;
// the blob id's own partition-plus-suffix encoding is already URL-safe and
// used directly as the S3 key.
type S3BlobStore struct {
	client     *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	bucket     string
}

// NewS3BlobStore builds an S3BlobStore over the given bucket.
func NewS3BlobStore(region, bucket string) (*S3BlobStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("replicastore: s3 bucket name is required")
	}

	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("replicastore: opening aws session: %w", err)
	}

	return &S3BlobStore{
		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
		bucket:     bucket,
	}, nil
}

// ErrBlobNotFound is returned by Get when no object exists for the blob id.
var ErrBlobNotFound = fmt.Errorf("replicastore: blob payload not found")

// Get downloads a blob's payload.
func (s *S3BlobStore) Get(ctx context.Context, blobID string) ([]byte, error) {
	buf := aws.NewWriteAtBuffer(nil)
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobID),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("replicastore: downloading blob %s: %w", blobID, err)
	}
	return buf.Bytes(), nil
}

// Put uploads a blob's payload, overwriting any existing object.
func (s *S3BlobStore) Put(ctx context.Context, blobID string, data []byte) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobID),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("replicastore: uploading blob %s: %w", blobID, err)
	}
	return nil
}

// Delete removes a blob's payload object. Deletion of a blob's bytes is
// distinct from marking it deleted in metadata; the metadata tombstone is
// what the read path checks, so a payload delete can lag or be skipped
// entirely by a compaction job without affecting correctness here.
func (s *S3BlobStore) Delete(ctx context.Context, blobID string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobID),
	})
	if err != nil {
		return fmt.Errorf("replicastore: deleting blob %s: %w", blobID, err)
	}
	return nil
}
