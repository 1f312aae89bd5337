package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type S3Options struct {
	Region   string
	Endpoint string
}

// S3Source reads s3://bucket/key references. Credentials come from the
// default AWS chain.
type S3Source struct {
	api *awss3.Client
	dl  *manager.Downloader
}

func NewS3Source(ctx context.Context, opts S3Options) (*S3Source, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = !strings.Contains(opts.Endpoint, "amazonaws.com")
		}
	})

	return &S3Source{
		api: client,
		dl:  manager.NewDownloader(client),
	}, nil
}

func (s *S3Source) Exists(ctx context.Context, ref string) (bool, error) {
	bucket, key, err := splitBucketRef(ref)
	if err != nil {
		return false, err
	}

	_, err = s.api.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if isS3NotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to head %s: %w", ref, err)
	}
	return true, nil
}

func (s *S3Source) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, err := splitBucketRef(ref)
	if err != nil {
		return nil, err
	}

	out, err := s.api.GetObject(ctx, &awss3.GetObjectInput{Bucket: &bucket, Key: &key})
	if isS3NotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", ref, err)
	}
	return out.Body, nil
}

// DownloadFile fetches the object with concurrent ranged reads.
func (s *S3Source) DownloadFile(ctx context.Context, ref string, f *os.File) error {
	bucket, key, err := splitBucketRef(ref)
	if err != nil {
		return err
	}

	_, err = s.dl.Download(ctx, f, &awss3.GetObjectInput{Bucket: &bucket, Key: &key})
	if isS3NotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", ref, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
