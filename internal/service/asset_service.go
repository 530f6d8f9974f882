package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
	cfg "github.com/nicnocquee/bluesky-later/configs"
)

// ErrAssetStorageDisabled is returned when no bucket is configured. Posts
// referencing stored assets cannot be published in that state.
var ErrAssetStorageDisabled = errors.New("asset storage is not configured")

// AssetService keeps compose-time image bytes in an S3-compatible bucket
// between post creation and publish.
type AssetService interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, string, error)
	Enabled() bool
}

type assetService struct {
	config cfg.Config
}

func NewAssetService(cfg cfg.Config) AssetService {
	return &assetService{config: cfg}
}

func (s *assetService) Enabled() bool {
	r2 := s.config.R2
	return r2.AccountID != "" && r2.AccessKey != "" && r2.SecretKey != "" && r2.BucketName != ""
}

func (s *assetService) client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.config.R2.AccessKey, s.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.config.R2.AccountID))
	}), nil
}

// Upload stores image bytes under a fresh nanoid key and returns the key.
// The MIME type is sniffed from the content when the caller did not supply
// one.
func (s *assetService) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if !s.Enabled() {
		return "", ErrAssetStorageDisabled
	}

	if contentType == "" {
		if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
			contentType = kind.MIME.Value
		} else {
			contentType = "application/octet-stream"
		}
	}

	key, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	client, err := s.client(ctx)
	if err != nil {
		return "", err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return key, nil
}

// Fetch returns the stored bytes and their MIME type.
func (s *assetService) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	if !s.Enabled() {
		return nil, "", ErrAssetStorageDisabled
	}

	client, err := s.client(ctx)
	if err != nil {
		return nil, "", err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.R2.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, "", err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
			contentType = kind.MIME.Value
		}
	}

	return data, contentType, nil
}
