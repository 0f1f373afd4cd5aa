// Package s3docs keeps claim verification documents in an S3 bucket.
package s3docs

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"

	"midtown_book/internal/adapters/observability"
	"midtown_book/internal/domain"
)

// MaxSize is the largest document accepted (10MB).
const MaxSize = 10 * 1024 * 1024

var allowedTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
}

type Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// Endpoint targets an S3-compatible store (MinIO, localstack); empty means AWS.
	Endpoint string
}

type Store struct {
	client s3iface.S3API
	bucket string
}

var _ domain.DocumentStore = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return NewWithClient(s3.New(sess), cfg.Bucket), nil
}

func NewWithClient(client s3iface.S3API, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// Put validates and uploads doc under prefix/yyyy/mm/dd/<uuid><ext> and returns the key.
func (s *Store) Put(ctx context.Context, prefix string, doc domain.Document) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(doc.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = contentTypeFromExtension(doc.Filename)
	}
	ext, ok := allowedTypes[ct]
	if !ok {
		return "", fmt.Errorf("%w: document type %q is not accepted", domain.ErrValidation, ct)
	}
	size := int64(len(doc.Body))
	if size == 0 {
		return "", fmt.Errorf("%w: document is empty", domain.ErrValidation)
	}
	if size > MaxSize {
		return "", fmt.Errorf("%w: document is %d bytes (max %d)", domain.ErrValidation, size, MaxSize)
	}

	key := fmt.Sprintf("%s/%s/%s%s", strings.Trim(prefix, "/"), time.Now().UTC().Format("2006/01/02"), uuid.NewString(), ext)
	start := time.Now()
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(doc.Body),
		ContentType:          aws.String(ct),
		ContentLength:        aws.Int64(size),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
		Metadata:             map[string]*string{"original-name": aws.String(filepath.Base(doc.Filename))},
	})
	observability.ObserveExternal("s3", "put", statusOf(err), time.Since(start))
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil // Nothing to delete
	}
	start := time.Now()
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	observability.ObserveExternal("s3", "delete", statusOf(err), time.Since(start))
	return err
}

func statusOf(err error) int {
	if err != nil {
		return 500
	}
	return 200
}

func contentTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
