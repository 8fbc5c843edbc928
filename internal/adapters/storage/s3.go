package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// S3Config apunta a un bucket de S3 o compatible (MinIO, R2...).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // vacío = AWS
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3Store implementa ports.StateStore con un objeto por clave.
// Antes de sobrescribir copia el objeto actual a <key>.json.bak.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store construye el cliente con credenciales estáticas si se dan.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage.NewS3Store: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewS3Store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Store) objectKey(key string) string {
	return path.Join(s.prefix, key+".json")
}

// Load descarga el objeto de la clave.
func (s *S3Store) Load(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("storage.S3Store.Load %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("storage.S3Store.Load %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage.S3Store.Load %s: read: %w", key, err)
	}
	return data, nil
}

// Save copia el objeto actual a .bak (si existe) y sube el nuevo.
func (s *S3Store) Save(ctx context.Context, key string, data []byte) error {
	objKey := s.objectKey(key)

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(url.PathEscape(s.bucket + "/" + objKey)),
		Key:        aws.String(objKey + ".bak"),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("storage.S3Store.Save %s: backup: %w", key, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("storage.S3Store.Save %s: put: %w", key, err)
	}
	return nil
}

// Close no hace nada: el cliente HTTP del SDK no necesita cierre.
func (s *S3Store) Close() error { return nil }

// isS3NotFound cubre NoSuchKey, NotFound y 404 genéricos de proveedores compatibles.
func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	type httpStatus interface{ HTTPStatusCode() int }
	var hs httpStatus
	return errors.As(err, &hs) && hs.HTTPStatusCode() == 404
}
