// Package archive guarda en un bucket S3-compatible los logs de mano que el
// oráculo usó para decidir, como evidencia de cada resolución.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alejandrodnm/pokeroracle/internal/ports"
)

// S3Config contiene la configuración del bucket. Endpoint vacío = AWS S3;
// con Endpoint se admite MinIO, R2 o cualquier proveedor compatible.
type S3Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

// S3Writer implementa ports.BlobWriter con PutObject.
type S3Writer struct {
	client *s3.Client
	bucket string
}

// NewS3Writer construye el cliente S3 con credenciales estáticas.
func NewS3Writer(ctx context.Context, cfg S3Config) (*S3Writer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive.NewS3Writer: bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("archive.NewS3Writer: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("archive.NewS3Writer: load aws config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint, cfg.UseSSL)
		opts = append(opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	if cfg.ForcePathStyle {
		opts = append(opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &S3Writer{client: s3.NewFromConfig(awsCfg, opts...), bucket: cfg.Bucket}, nil
}

// Put sube data en una sola petición. Los logs de mano pesan pocos KB.
func (w *S3Writer) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if _, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}); err != nil {
		return fmt.Errorf("archive.Put: %s/%s: %w", w.bucket, key, err)
	}
	return nil
}

// normaliseEndpoint añade el esquema si el endpoint no lo trae.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

var _ ports.BlobWriter = (*S3Writer)(nil)
