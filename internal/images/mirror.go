package images

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"contentpipe/internal/config"
)

// Mirror copies a rendered image to remote storage and returns its public URL.
type Mirror interface {
	Upload(ctx context.Context, name, localPath string) (string, error)
}

// ObjectPutter is the subset of the S3 client used by S3Mirror.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror uploads images to a bucket.
type S3Mirror struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	baseURL string
}

// NewS3Mirror builds a mirror from the images config section. It returns a
// nil Mirror when no bucket is configured.
func NewS3Mirror(ctx context.Context, cfg config.Images) (Mirror, error) {
	if strings.TrimSpace(cfg.S3Bucket) == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3MirrorWithClient(s3.NewFromConfig(awsCfg), cfg), nil
}

// NewS3MirrorWithClient builds a mirror around an existing client.
func NewS3MirrorWithClient(client ObjectPutter, cfg config.Images) *S3Mirror {
	return &S3Mirror{
		client:  client,
		bucket:  strings.TrimSpace(cfg.S3Bucket),
		prefix:  strings.Trim(strings.TrimSpace(cfg.S3Prefix), "/"),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.S3PublicBaseURL), "/"),
	}
}

// Key returns the object key for an image file name.
func (m *S3Mirror) Key(name string) string {
	if m.prefix == "" {
		return name
	}
	return m.prefix + "/" + name
}

func (m *S3Mirror) Upload(ctx context.Context, name, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()
	key := m.Key(name)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(m.bucket),
		Key:          aws.String(key),
		Body:         file,
		ContentType:  aws.String("image/png"),
		CacheControl: aws.String("public, max-age=31536000"),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", m.bucket, key, err)
	}
	return m.baseURL + "/" + key, nil
}
