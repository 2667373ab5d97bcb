package integrations

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"conclave/backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// S3Client stores site images (sponsor logos, speaker photos, banners, team
// portraits) in an S3-compatible bucket.
type S3Client struct {
	bucket         string
	endpoint       string
	publicEndpoint string
	client         *s3.Client
	now            func() time.Time
}

// NewS3 builds the client from explicit configuration.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	endpoint := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	publicEndpoint := normalizeEndpoint(cfg.PublicEndpoint, cfg.UseSSL)
	if publicEndpoint == "" {
		publicEndpoint = endpoint
	}

	options := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if endpoint != "" {
		options.BaseEndpoint = aws.String(endpoint)
	}

	return &S3Client{
		bucket:         cfg.Bucket,
		endpoint:       endpoint,
		publicEndpoint: publicEndpoint,
		client:         s3.New(options),
		now:            time.Now,
	}, nil
}

// UploadObject stores body under folder and returns its public URL.
func (s *S3Client) UploadObject(ctx context.Context, folder, fileName, contentType string, body io.Reader, size int64) (string, error) {
	key := s.buildObjectKey(folder, fileName)
	var readSeeker io.ReadSeeker
	if rs, ok := body.(io.ReadSeeker); ok {
		readSeeker = rs
	} else {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		readSeeker = bytes.NewReader(data)
		if size <= 0 {
			size = int64(len(data))
		}
	}
	input := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         readSeeker,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", err
	}
	return s.publicURLForKey(key), nil
}

// DeleteByURL removes the object behind a public URL. URLs that do not
// belong to the bucket are ignored.
func (s *S3Client) DeleteByURL(ctx context.Context, rawURL string) error {
	key, ok := s.KeyFromURL(rawURL)
	if !ok {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3Client) publicURLForKey(key string) string {
	if s.publicEndpoint == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
	}

	endpoint := s.publicEndpoint
	if !strings.HasPrefix(endpoint, "http") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Sprintf("%s/%s/%s", endpoint, s.bucket, key)
	}
	u.Path = path.Join(u.Path, s.bucket, key)
	return u.String()
}

// KeyFromURL extracts the object key from a public or path-style URL.
func (s *S3Client) KeyFromURL(rawURL string) (string, bool) {
	if s == nil || s.bucket == "" || strings.TrimSpace(rawURL) == "" {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	pathPart := u.Path
	if pathPart == "" {
		return "", false
	}
	needle := "/" + s.bucket + "/"
	if idx := strings.Index(pathPart, needle); idx >= 0 {
		key := strings.TrimPrefix(pathPart[idx+len(needle):], "/")
		if key != "" {
			return key, true
		}
	}
	if host := u.Hostname(); strings.HasPrefix(host, s.bucket+".") {
		key := strings.TrimPrefix(pathPart, "/")
		if key != "" {
			return key, true
		}
	}
	return "", false
}

func (s *S3Client) buildObjectKey(folder, fileName string) string {
	folder = strings.Trim(unsafeKeyChars.ReplaceAllString(strings.ToLower(folder), "-"), "-")
	if folder == "" {
		folder = "uploads"
	}
	safeName := strings.Trim(unsafeKeyChars.ReplaceAllString(path.Base(fileName), "-"), "-")
	if safeName == "" || safeName == "." {
		safeName = "image"
	}
	now := s.now().UTC()
	return fmt.Sprintf("%s/%d/%02d/%d-%s", folder, now.Year(), now.Month(), now.UnixNano(), safeName)
}

func normalizeEndpoint(endpoint string, useSSL bool) string {
	if endpoint == "" {
		return ""
	}
	if strings.HasPrefix(endpoint, "http") {
		return endpoint
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	return scheme + "://" + endpoint
}
