// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/upload"
)

// S3Config holds connection settings for an S3 compatible bucket.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string // optional, e.g. a MinIO URL
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3Store keeps files as objects in a bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates an S3 client. Static credentials are used when both
// keys are set, otherwise the default credential chain applies.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads r as a new object.
func (s *S3Store) Put(ctx context.Context, name string, r io.Reader) (Ref, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	ref := newRef(name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(string(ref)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(upload.ContentType(name)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}
	return ref, nil
}

// Open streams an object's content.
func (s *S3Store) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	if !validRef(ref) {
		return nil, fmt.Errorf("%w: blob %q", model.ErrNotFound, ref)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(ref)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: blob %q", model.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return out.Body, nil
}

// Delete removes an object. S3 treats missing keys as deleted.
func (s *S3Store) Delete(ctx context.Context, ref Ref) error {
	if !validRef(ref) {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(ref)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Filename returns the stored file name of ref.
func (s *S3Store) Filename(ref Ref) string {
	return Filename(ref)
}

// Ping checks that the bucket exists and is reachable.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("bucket %s: %w", s.bucket, err)
	}
	return nil
}
