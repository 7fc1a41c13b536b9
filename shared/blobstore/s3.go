package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3 user metadata keys
const (
	metaOwnerID  = "owner-id"
	metaFilename = "filename"
)

// S3Config holds the S3 compatible backend settings
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
}

// S3Store keeps objects in one bucket, owner and filename in user metadata
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store loads AWS configuration, preferring static credentials when given
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

func (s *S3Store) key(id string) string {
	if s.prefix == "" {
		return id
	}
	return path.Join(s.prefix, id)
}

// Put streams r to the bucket through the multipart uploader
func (s *S3Store) Put(ctx context.Context, r io.Reader, meta Metadata) (string, error) {
	id := newID()

	userMeta := map[string]string{metaOwnerID: meta.OwnerID}
	if meta.Filename != "" {
		userMeta[metaFilename] = meta.Filename
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        r,
		ContentType: aws.String(meta.ContentType),
		Metadata:    userMeta,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload blob %s: %w", id, err)
	}

	return id, nil
}

// Get opens the object body
func (s *S3Store) Get(ctx context.Context, id string) (*Object, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download blob %s: %w", id, err)
	}

	return &Object{
		ID: id,
		Metadata: Metadata{
			OwnerID:     out.Metadata[metaOwnerID],
			ContentType: aws.ToString(out.ContentType),
			Filename:    out.Metadata[metaFilename],
		},
		Size: aws.ToInt64(out.ContentLength),
		Body: out.Body,
	}, nil
}
