// Package objectstore moves uploaded documents to durable S3-compatible
// storage and back to local scratch space.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"pdf_rag/backend/go/internal/config"
	dbminio "pdf_rag/backend/go/internal/database/minio"
	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	pkghttp "pdf_rag/backend/go/pkg/http"
	"pdf_rag/backend/go/pkg/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ContentTypePDF is set on every stored object.
const ContentTypePDF = "application/pdf"

// Putter is the part of *minio.Client that Store needs.
type Putter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Store implements the ObjectStore interface on an S3-compatible bucket.
type S3Store struct {
	putter  Putter
	http    *pkghttp.Client
	cfg     config.StorageConfig
	baseURL string
	log     *logger.Logger
}

// New creates an S3Store from storage configuration. Missing credentials or
// bucket are a configuration error.
func New(cfg config.StorageConfig, hc *pkghttp.Client, log *logger.Logger) (*S3Store, error) {
	client, err := dbminio.NewClient(cfg)
	if err != nil {
		return nil, ragerr.New(ragerr.Configuration, "object store", err)
	}
	return NewWithPutter(client, cfg, hc, log), nil
}

// NewWithPutter creates an S3Store that uploads through p.
func NewWithPutter(p Putter, cfg config.StorageConfig, hc *pkghttp.Client, log *logger.Logger) *S3Store {
	if hc == nil {
		hc = pkghttp.NewClientWith(nil)
	}
	if log == nil {
		log = logger.New("objectstore")
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = "s3"
	}
	return &S3Store{putter: p, http: hc, cfg: cfg, baseURL: PublicBaseURL(cfg), log: log}
}

// HealthCheck verifies that the bucket exists. A putter that cannot look up
// buckets reports no error.
func (s *S3Store) HealthCheck(ctx context.Context) error {
	bc, ok := s.putter.(dbminio.BucketChecker)
	if !ok {
		return nil
	}
	if err := dbminio.HealthCheck(ctx, bc, s.cfg.Bucket); err != nil {
		return ragerr.New(ragerr.Storage, "object store health", err)
	}
	return nil
}

// PublicBaseURL returns the URL prefix objects in the bucket are reachable under.
func PublicBaseURL(cfg config.StorageConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	if config.IsAWSEndpoint(host) {
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
	}
	scheme := "http"
	if cfg.UseHTTPS() {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, host, cfg.Bucket)
}

// Key returns the object key for a new upload id.
func (s *S3Store) Key(id string) string {
	prefix := strings.Trim(s.cfg.Prefix, "/")
	if prefix == "" {
		return id + ".pdf"
	}
	return prefix + "/" + id + ".pdf"
}

// Store uploads content under a fresh key and returns its public URL.
// originalName is only recorded as object metadata.
func (s *S3Store) Store(ctx context.Context, content []byte, originalName string) (string, error) {
	const op = "store"
	key := s.Key(uuid.New().String())

	opts := minio.PutObjectOptions{ContentType: ContentTypePDF}
	if originalName != "" {
		opts.UserMetadata = map[string]string{"original-name": filepath.Base(originalName)}
	}

	_, err := s.putter.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(content), int64(len(content)), opts)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.StatusCode != 0 {
			return "", ragerr.WithStatus(ragerr.Storage, op, resp.StatusCode, err)
		}
		return "", ragerr.New(ragerr.Storage, op, err)
	}

	reference := s.baseURL + "/" + key
	s.log.WithField("key", key).WithField("bytes", len(content)).Info("stored object")
	return reference, nil
}

// Fetch downloads reference into the scratch directory and returns the
// absolute local path. A file already present under the same name is reused.
func (s *S3Store) Fetch(ctx context.Context, reference string) (string, error) {
	const op = "fetch"

	name, err := FileName(reference)
	if err != nil {
		return "", ragerr.New(ragerr.Validation, op, err)
	}

	dir, err := filepath.Abs(s.cfg.ScratchDir)
	if err != nil {
		return "", ragerr.New(ragerr.Storage, op, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ragerr.New(ragerr.Storage, op, err)
	}

	local := filepath.Join(dir, name)
	if _, err := os.Stat(local); err == nil {
		s.log.WithField("path", local).Debug("scratch file already present")
		return local, nil
	}

	resp, err := s.http.Get(ctx, reference)
	if err != nil {
		var se *pkghttp.StatusError
		if errors.As(err, &se) {
			return "", ragerr.WithStatus(ragerr.Storage, op, se.StatusCode, err)
		}
		return "", ragerr.New(ragerr.Storage, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", ragerr.WithStatus(ragerr.Storage, op, resp.StatusCode,
			fmt.Errorf("GET %s: %s", reference, http.StatusText(resp.StatusCode)))
	}

	tmp, err := os.CreateTemp(dir, name+".*.part")
	if err != nil {
		return "", ragerr.New(ragerr.Storage, op, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", ragerr.New(ragerr.Storage, op, fmt.Errorf("download %s: %w", reference, err))
	}
	if err := tmp.Close(); err != nil {
		return "", ragerr.New(ragerr.Storage, op, err)
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", ragerr.New(ragerr.Storage, op, err)
	}

	s.log.WithField("path", local).Info("fetched object")
	return local, nil
}

// FileName returns the last path segment of a reference URL.
func FileName(reference string) (string, error) {
	u, err := url.Parse(reference)
	if err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", reference, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("reference %q has no file name", reference)
	}
	return name, nil
}

// compile-time check to ensure S3Store implements the ObjectStore interface
var _ interfaces.ObjectStore = (*S3Store)(nil)
var _ interfaces.HealthChecker = (*S3Store)(nil)
