// Package storage keeps material files and site images in S3-compatible
// object storage. Full materials live in a private bucket and are handed out
// only through short-lived signed URLs; covers, previews and post media live
// in a public bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/psicopedagogiando/tienda/internal/common"
	sc "github.com/psicopedagogiando/tienda/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	now = time.Now
)

// ObjectAPI is the subset of *s3.Client used by S3Store.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is the subset of *s3.PresignClient used by S3Store.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Store struct {
	objects       ObjectAPI
	presign       Presigner
	privateBucket string
	publicBucket  string
	publicBaseURL string
	signedURLTTL  time.Duration
}

// New builds an S3Store from the server configuration. Path-style addressing
// is forced so MinIO endpoints work without virtual-host DNS.
func New(ctx context.Context, cfg *sc.Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return NewWithClients(client, newS3PresignClient(client), cfg), nil
}

// NewWithClients wires an S3Store over explicit clients.
func NewWithClients(objects ObjectAPI, presign Presigner, cfg *sc.Config) *S3Store {
	return &S3Store{
		objects:       objects,
		presign:       presign,
		privateBucket: cfg.S3PrivateBucket,
		publicBucket:  cfg.S3PublicBucket,
		publicBaseURL: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
		signedURLTTL:  cfg.SignedURLValidityDuration,
	}
}

// UploadPrivate stores a material file and returns its object key.
func (s *S3Store) UploadPrivate(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error) {
	key := NewKey(name)
	if err := s.put(ctx, s.privateBucket, key, contentType, body, size); err != nil {
		return "", err
	}
	return key, nil
}

// UploadPublic stores a publicly readable object and returns its key and URL.
func (s *S3Store) UploadPublic(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, string, error) {
	key := NewKey(name)
	if err := s.put(ctx, s.publicBucket, key, contentType, body, size); err != nil {
		return "", "", err
	}
	return key, s.PublicURL(key), nil
}

func (s *S3Store) put(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.objects.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3Store) RemovePrivate(ctx context.Context, key string) error {
	return s.remove(ctx, s.privateBucket, key)
}

func (s *S3Store) RemovePublic(ctx context.Context, key string) error {
	return s.remove(ctx, s.publicBucket, key)
}

func (s *S3Store) remove(ctx context.Context, bucket, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// SignedURL returns a presigned GET URL for a private object.
func (s *S3Store) SignedURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", common.ErrorNotFound
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.privateBucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.signedURLTTL))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}

// PublicURL returns the permanent URL of a public object.
func (s *S3Store) PublicURL(key string) string {
	return s.publicBaseURL + "/" + s.publicBucket + "/" + key
}

// KeyFromPublicURL recovers the object key from a URL built by PublicURL.
func (s *S3Store) KeyFromPublicURL(u string) (string, bool) {
	prefix := s.publicBaseURL + "/" + s.publicBucket + "/"
	if !strings.HasPrefix(u, prefix) || len(u) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(u, prefix), true
}

var folderRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// NewKey returns a collision-free object key ending in a sanitized form of
// name. A name of the form "folder/file" keeps folder as a key prefix.
func NewKey(name string) string {
	prefix := ""
	if i := strings.IndexByte(name, '/'); i > 0 && folderRe.MatchString(name[:i]) {
		prefix, name = name[:i+1], name[i+1:]
	}
	return prefix + fmt.Sprintf("%d_%s_%s", now().UnixMilli(), uuid.NewString(), sanitize(name))
}

func sanitize(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
