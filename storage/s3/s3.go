// Package s3 stores objects in Amazon S3 or an S3-compatible service such
// as Aliyun OSS.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderS3, func(cfg storage.Config, log *logger.Logger) (storage.Storage, error) {
		return NewStorage(context.Background(), cfg, log)
	})
}

type Storage struct {
	client    *awss3.Client
	bucket    string
	publicURL string
	log       *logger.Logger
}

func NewStorage(ctx context.Context, cfg storage.Config, log *logger.Logger) (*Storage, error) {
	load := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		static := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		load = append(load, awsconfig.WithCredentialsProvider(static))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	endpoint := withScheme(cfg.Endpoint)
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
		// OSS rejects the streaming checksum trailer.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &Storage{client: client, bucket: cfg.Bucket, publicURL: publicBase(cfg, endpoint), log: log}, nil
}

// withScheme turns a bare host such as "oss-cn-beijing.aliyuncs.com" into
// an https URL.
func withScheme(endpoint string) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}

// publicBase is the prefix object URLs are built on:
//
//	PublicBaseURL               as configured
//	no endpoint                 https://{bucket}.s3.{region}.amazonaws.com
//	path style                  {scheme}://{host}/{bucket}
//	virtual hosted (OSS)        {scheme}://{bucket}.{host}
func publicBase(cfg storage.Config, endpoint string) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimSuffix(cfg.PublicBaseURL, "/")
	case endpoint == "":
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(endpoint, "/") + "/" + cfg.Bucket
	}
	if cfg.ForcePathStyle {
		return u.Scheme + "://" + u.Host + "/" + cfg.Bucket
	}
	return u.Scheme + "://" + cfg.Bucket + "." + u.Host
}

func (s *Storage) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	in := &awss3.PutObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key), Body: reader}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("storage: put s3://%s/%s: %w", s.bucket, key, err)
	}
	s.log.Debug("object uploaded", logger.Fields("bucket", s.bucket, "key", key))
	return nil
}

func (s *Storage) URL(_ context.Context, key string) (string, error) {
	return s.publicURL + "/" + strings.TrimPrefix(key, "/"), nil
}

var _ storage.Storage = (*Storage)(nil)
