package storagesvc

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core"
)

// S3 stores objects in an S3 compatible bucket.
type S3 struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

var _ core.ObjectStorage = (*S3)(nil)

func NewS3(conf core.StorageConfig) (*S3, error) {
	if conf.S3Key == "" || conf.S3Secret == "" {
		return nil, errors.New("s3: key and secret are required")
	}
	if conf.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	opts := s3.Options{
		Region:       conf.S3Region,
		Credentials:  credentials.NewStaticCredentialsProvider(conf.S3Key, conf.S3Secret, ""),
		UsePathStyle: true,
	}
	if conf.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(strings.TrimSuffix(conf.S3Endpoint, "/"+conf.Bucket))
	}

	baseURL := conf.PublicBaseURL
	if baseURL == "" && conf.S3Endpoint != "" {
		baseURL = strings.TrimSuffix(conf.S3Endpoint, "/"+conf.Bucket) + "/" + conf.Bucket
	}
	return &S3{client: s3.New(opts), bucket: conf.Bucket, baseURL: baseURL}, nil
}

func (s *S3) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(strings.TrimLeft(path, "/")),
		Body:        r,
		IfNoneMatch: aws.String("*"),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return core.ErrObjectExists
		}
		return errors.Wrap(err, "s3: uploading object")
	}
	return nil
}

func (s *S3) PublicURL(path string) string {
	return publicURL(s.baseURL, path)
}
