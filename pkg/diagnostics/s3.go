package diagnostics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Sink stores captures in an S3-compatible bucket (R2, MinIO, S3).
type S3Sink struct {
	client *minio.Client
	bucket string
	prefix string
	now    func() time.Time
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
}

func NewS3Sink(config S3Config) (*S3Sink, error) {
	useSSL := !strings.HasPrefix(strings.ToLower(config.Endpoint), "http://")
	client, err := minio.New(sanitizeEndpoint(config.Endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure:       useSSL,
		Region:       config.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Sink{client: client, bucket: config.Bucket, prefix: strings.Trim(config.Prefix, "/"), now: time.Now}, nil
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	return nil
}

func (s *S3Sink) Save(ctx context.Context, name string, image []byte) (Handle, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return Handle{}, fmt.Errorf("ensure bucket: %w", err)
	}
	key := ObjectName(name, s.now(), image)
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	_, contentType := imageFormat(image)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(image), int64(len(image)), minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: true,
	})
	if err != nil {
		return Handle{}, fmt.Errorf("put diagnostic: %w", err)
	}
	return Handle{Name: name, Location: "s3://" + s.bucket + "/" + key}, nil
}

func (s *S3Sink) Open(ctx context.Context, handle Handle) (io.ReadCloser, error) {
	key := strings.TrimPrefix(handle.Location, "s3://"+s.bucket+"/")
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, statErr := object.Stat(); statErr != nil {
		return nil, statErr
	}
	return object, nil
}

func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if index := strings.Index(raw, "/"); index >= 0 {
		raw = raw[:index]
	}
	return raw
}
