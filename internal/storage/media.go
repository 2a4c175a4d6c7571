package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"cimars/catalog/internal/config"
)

var ErrForeignURL = errors.New("url does not belong to the media host")

// IMediaStore keeps listing images on the media host. Callers only ever
// see public URLs.
type IMediaStore interface {
	Upload(ctx context.Context, folder, filename, contentType string, body io.Reader) (string, error)
	List(ctx context.Context, folder string) ([]string, error)
	Delete(ctx context.Context, url string) error
}

// s3API is the part of *s3.Client the media store uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

type S3MediaStore struct {
	cfg     *config.Config
	client  s3API
	baseURL string
}

// ListingFolder is where images of the listing with the given code live.
func ListingFolder(cfg *config.Config, code string) string {
	return path.Join(cfg.MediaRootFolder, code)
}

func NewS3MediaStore(ctx context.Context, cfg *config.Config) (*S3MediaStore, error) {
	if cfg.AwsS3Bucket == "" {
		return nil, errors.New("AWS_S3_BUCKET is not configured")
	}

	opts := []func(*aws_config.LoadOptions) error{aws_config.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)))
	}
	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AwsS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AwsS3Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3MediaStore(cfg, client), nil
}

func newS3MediaStore(cfg *config.Config, client s3API) *S3MediaStore {
	return &S3MediaStore{cfg: cfg, client: client, baseURL: publicBaseURL(cfg)}
}

// publicBaseURL is the prefix object keys are appended to. MEDIA_BASE_URL
// (a CDN) wins over the bucket endpoint.
func publicBaseURL(cfg *config.Config) string {
	switch {
	case cfg.MediaBaseURL != "":
		return cfg.MediaBaseURL
	case cfg.AwsS3Endpoint != "":
		return strings.TrimRight(cfg.AwsS3Endpoint, "/") + "/" + cfg.AwsS3Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.AwsS3Bucket, cfg.AwsRegion)
	}
}

func (s *S3MediaStore) urlFor(key string) string {
	return s.baseURL + "/" + key
}

func (s *S3MediaStore) keyFor(url string) (string, error) {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %s", ErrForeignURL, url)
	}
	return key, nil
}

// Upload normalizes the image and stores it under folder with a fresh
// object name. filename only contributes its extension.
func (s *S3MediaStore) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader) (string, error) {
	limit := int64(s.cfg.ImageMaxSizeMB)*1024*1024 + 1
	data, err := io.ReadAll(io.LimitReader(body, limit))
	if err != nil {
		return "", fmt.Errorf("reading upload %s: %w", filename, err)
	}

	data, contentType, err = NormalizeImage(data, s.cfg.ImageMaxDimension, s.cfg.ImageMaxSizeMB)
	if err != nil {
		return "", err
	}

	key := path.Join(folder, uuid.NewString()+extensionFor(contentType))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	slog.Info("image uploaded", "key", key, "bytes", len(data), "original", filename)
	return s.urlFor(key), nil
}

func (s *S3MediaStore) List(ctx context.Context, folder string) ([]string, error) {
	urls := []string{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Prefix: aws.String(strings.TrimSuffix(folder, "/") + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", folder, err)
		}
		for _, obj := range page.Contents {
			urls = append(urls, s.urlFor(aws.ToString(obj.Key)))
		}
	}
	return urls, nil
}

func (s *S3MediaStore) Delete(ctx context.Context, url string) error {
	key, err := s.keyFor(url)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
