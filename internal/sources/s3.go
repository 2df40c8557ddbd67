package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/matrixhub/catalog-server/internal/service"
)

// maxObjectBytes caps the size of a catalog object read from a bucket
const maxObjectBytes = 32 << 20

// S3Location identifies a catalog object in an S3-compatible bucket
type S3Location struct {
	Bucket string
	Key    string
	Region string

	// Endpoint enables path-style addressing against a custom endpoint (MinIO and similar)
	Endpoint string
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader reads a catalog document from an S3-compatible bucket
type S3Loader struct {
	client    objectGetter
	loc       S3Location
	format    string
	validator *Validator
}

// NewS3Loader creates a loader using the default AWS credential chain.
// The format follows the extension of the object key.
func NewS3Loader(ctx context.Context, loc S3Location) (*S3Loader, error) {
	if loc.Bucket == "" || loc.Key == "" {
		return nil, errors.New("bucket and key are required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if loc.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(loc.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if loc.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(loc.Endpoint)
			o.UsePathStyle = true
		})
	}

	return newS3Loader(s3.NewFromConfig(cfg, s3opts...), loc)
}

func newS3Loader(client objectGetter, loc S3Location) (*S3Loader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	return &S3Loader{client: client, loc: loc, format: DetectFormat(loc.Key), validator: validator}, nil
}

// Source describes the loader for logging
func (l *S3Loader) Source() string {
	return fmt.Sprintf("s3://%s/%s", l.loc.Bucket, l.loc.Key)
}

// Load downloads, validates and decodes the catalog object
func (l *S3Loader) Load(ctx context.Context) ([]service.Entity, error) {
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.loc.Bucket),
		Key:    aws.String(l.loc.Key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("catalog object not found: %s", l.Source())
		}
		return nil, fmt.Errorf("s3 get object %s: %w", l.Source(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog object %s: %w", l.Source(), err)
	}
	if len(data) > maxObjectBytes {
		return nil, fmt.Errorf("catalog object %s exceeds %d bytes", l.Source(), maxObjectBytes)
	}

	entities, err := l.validator.Parse(data, l.format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Source(), err)
	}

	slog.InfoContext(ctx, "Loaded catalog object",
		"source", l.Source(),
		"format", l.format,
		"entities", len(entities),
		"etag", aws.ToString(out.ETag))
	return entities, nil
}
