// Package objectstore uploads product images to an S3-compatible bucket.
package objectstore

import (
	"context"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/kart-fulfillment/internal/domain/catalog"
)

// Config describes the bucket.
type Config struct {
	Endpoint  string `usage:"S3-compatible endpoint, e.g. http://minio:9000"`
	Bucket    string `usage:"Bucket for product images; uploads are disabled when empty"`
	Region    string `default:"us-east-1" usage:"Bucket region"`
	AccessKey string `usage:"Static access key; the default AWS chain is used when empty"`
	SecretKey string `usage:"Static secret key"`
	// PublicURL prefixes returned URLs. Defaults to Endpoint.
	PublicURL string `usage:"Public base URL of the object store" flag:"object-store-public-url"`
}

// Enabled reports whether uploads are configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ catalog.ObjectStore = (*Store)(nil)

// Store uploads objects with public-read ACL.
type Store struct {
	client    putter
	bucket    string
	publicURL string
}

// New creates a Store from cfg using static credentials when given and the
// default AWS chain otherwise. Path-style addressing keeps MinIO working.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = cfg.Endpoint
	}
	return newStore(client, cfg.Bucket, publicURL), nil
}

func newStore(client putter, bucket, publicURL string) *Store {
	return &Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Upload stores obj under folder/<uuid><ext> and returns its public URL.
func (s *Store) Upload(ctx context.Context, folder string, obj catalog.Object) (string, error) {
	key := Key(folder, obj.Name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          obj.Body,
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(obj.Size),
		ACL:           types.ObjectCannedACLPublicRead,
		Metadata: map[string]string{
			"original-name": obj.Name,
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "put object %s", key)
	}
	return s.publicURL + "/" + s.bucket + "/" + key, nil
}

// Key builds a collision-free object key that keeps the file extension.
func Key(folder, name string) string {
	return path.Join(folder, uuid.New().String()+strings.ToLower(path.Ext(name)))
}
