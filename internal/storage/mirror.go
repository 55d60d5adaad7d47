// Package storage mirrors generated assets into a public S3-compatible
// bucket. Mirroring is best-effort: callers keep the provider URL whenever
// the copy fails.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// maxAssetBytes bounds a single download.
const maxAssetBytes = 20 << 20

// Config describes the target bucket.
type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
	Prefix        string
}

// ObjectPutter is the subset of the S3 client used by Mirror.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Mirror copies remote assets into the bucket.
type Mirror struct {
	cfg    Config
	client ObjectPutter
	http   *http.Client
	now    func() time.Time
}

// NewMirror builds a Mirror backed by a real S3 client.
func NewMirror(cfg Config) (*Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("s3 public base url is required")
	}

	options := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		options.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return NewMirrorWithClient(cfg, s3.New(options), nil), nil
}

// NewMirrorWithClient builds a Mirror around an existing client. A nil
// httpClient uses a 30s-timeout default.
func NewMirrorWithClient(cfg Config, client ObjectPutter, httpClient *http.Client) *Mirror {
	if cfg.Prefix == "" {
		cfg.Prefix = "generations"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Mirror{cfg: cfg, client: client, http: httpClient, now: time.Now}
}

// MirrorURL returns the public bucket URL of a copy of src, or src itself if
// any step fails. The failure is logged at warn level.
func (m *Mirror) MirrorURL(ctx context.Context, src string) string {
	if m == nil {
		return src
	}
	out, err := m.copy(ctx, src)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("src", src).Msg("asset mirror failed; keeping provider url")
		return src
	}
	return out
}

func (m *Mirror) copy(ctx context.Context, src string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("download: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return "", fmt.Errorf("read asset: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no data to upload")
	}
	if len(data) > maxAssetBytes {
		return "", fmt.Errorf("asset exceeds %d bytes", maxAssetBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	key := m.generateKey(contentType)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return strings.TrimRight(m.cfg.PublicBaseURL, "/") + "/" + key, nil
}

func (m *Mirror) generateKey(contentType string) string {
	now := m.now().UTC()
	prefix := strings.Trim(m.cfg.Prefix, "/")
	return path.Join(prefix, fmt.Sprintf("%04d/%02d/%02d", now.Year(), now.Month(), now.Day()), uuid.NewString()+extensionFromContentType(contentType))
}

func extensionFromContentType(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}
