package tokenizer

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ikawaha/kagome-dict/dict"
	"github.com/ikawaha/kagome-dict/ipa"
)

// ObjectFetcher is the subset of the S3 client used to download dictionaries
type ObjectFetcher interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures the client for s3:// dictionary locations
type S3Config struct {
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewS3Fetcher creates an S3 client. Static credentials are used when both
// keys are set, otherwise the default credential chain.
func NewS3Fetcher(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// OpenDictionary resolves a dictionary location:
//
//	""                  embedded IPA dictionary
//	/path/ipa.dict      dictionary file (file:// prefix allowed)
//	s3://bucket/key     dictionary file downloaded from S3
func OpenDictionary(ctx context.Context, location string, fetcher ObjectFetcher) (*dict.Dict, error) {
	location = strings.TrimSpace(location)

	switch {
	case location == "":
		return ipa.Dict(), nil

	case isS3Location(location):
		if fetcher == nil {
			return nil, fmt.Errorf("no S3 client configured for %s", location)
		}
		bucket, key, err := parseS3Location(location)
		if err != nil {
			return nil, err
		}
		path, err := downloadObject(ctx, fetcher, bucket, key)
		if err != nil {
			return nil, err
		}
		defer os.Remove(path)
		return loadDictFile(path)

	default:
		return loadDictFile(strings.TrimPrefix(location, "file://"))
	}
}

func loadDictFile(path string) (*dict.Dict, error) {
	d, err := dict.LoadDictFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dictionary %s: %w", path, err)
	}
	return d, nil
}

func isS3Location(location string) bool {
	return strings.HasPrefix(strings.TrimSpace(location), "s3://")
}

func parseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid dictionary location %q: %w", location, err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid dictionary location %q: want s3://bucket/key", location)
	}
	return bucket, key, nil
}

// downloadObject copies an S3 object to a temp file and returns its path
func downloadObject(ctx context.Context, fetcher ObjectFetcher, bucket, key string) (string, error) {
	out, err := fetcher.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	f, err := os.CreateTemp("", "kensaku-dict-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	return f.Name(), nil
}
