package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

type BucketCategory string

const (
	BucketCategoryAvatar   BucketCategory = "avatar"
	BucketCategoryMaterial BucketCategory = "material"
)

var ErrStorageDisabled = errors.New("object storage is not configured")

type BucketService interface {
	Enabled() bool
	UploadFile(ctx context.Context, category BucketCategory, key, contentType string, file io.Reader) (int64, error)
	DeleteFile(ctx context.Context, category BucketCategory, key string) error
	DownloadFile(ctx context.Context, category BucketCategory, key string) (io.ReadCloser, *ObjectAttrs, error)
	GetPublicURL(category BucketCategory, key string) string
}

type ObjectAttrs struct {
	Size        int64
	ContentType string
	Updated     time.Time
}

type bucketConfig struct {
	name      string
	cdnDomain string
}

type bucketService struct {
	log           *logger.Logger
	client        *storage.Client
	cfg           ObjectStorageConfig
	avatar        bucketConfig
	material      bucketConfig
	publicBaseURL string
}

func NewBucketService(ctx context.Context, log *logger.Logger, cfg ObjectStorageConfig) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		serviceLog.Warn("Object storage disabled; uploads will be rejected")
		return &bucketService{log: serviceLog, cfg: cfg}, nil
	}

	var opts []option.ClientOption
	switch cfg.Mode {
	case ObjectStorageModeGCSEmulator:
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
		opts = append(opts, option.WithoutAuthentication())
	default:
		opts = append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	publicBase := cfg.PublicBaseURL
	if publicBase == "" && cfg.Mode == ObjectStorageModeGCSEmulator {
		publicBase = strings.TrimRight(cfg.EmulatorHost, "/")
	}
	serviceLog.Info("Object storage initialized",
		"mode", cfg.Mode,
		"avatar_bucket", cfg.AvatarBucket,
		"material_bucket", cfg.MaterialBucket,
		"public_base_url", publicBase,
	)
	return &bucketService{
		log:           serviceLog,
		client:        client,
		cfg:           cfg,
		avatar:        bucketConfig{name: cfg.AvatarBucket, cdnDomain: cfg.AvatarCDN},
		material:      bucketConfig{name: cfg.MaterialBucket, cdnDomain: cfg.MaterialCDN},
		publicBaseURL: publicBase,
	}, nil
}

func (bs *bucketService) Enabled() bool {
	return bs != nil && bs.client != nil
}

func (bs *bucketService) bucket(category BucketCategory) (bucketConfig, error) {
	if !bs.Enabled() {
		return bucketConfig{}, ErrStorageDisabled
	}
	switch category {
	case BucketCategoryAvatar:
		return bs.avatar, nil
	case BucketCategoryMaterial:
		return bs.material, nil
	default:
		return bucketConfig{}, fmt.Errorf("unknown bucket category: %s", category)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (bs *bucketService) UploadFile(ctx context.Context, category BucketCategory, key, contentType string, file io.Reader) (int64, error) {
	cfg, err := bs.bucket(category)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.client.Bucket(cfg.name).Object(key).NewWriter(ctx)
	if ct := strings.TrimSpace(contentType); ct != "" {
		w.ContentType = ct
	} else if ct := ContentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	cr := &countingReader{r: file}
	if _, err := io.Copy(w, cr); err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return cr.n, nil
}

func (bs *bucketService) DeleteFile(ctx context.Context, category BucketCategory, key string) error {
	cfg, err := bs.bucket(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err = bs.client.Bucket(cfg.name).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, cfg.name, err)
	}
	return nil
}

// readCloserWithCancel keeps the download context alive until the caller closes the body.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (bs *bucketService) DownloadFile(ctx context.Context, category BucketCategory, key string) (io.ReadCloser, *ObjectAttrs, error) {
	cfg, err := bs.bucket(category)
	if err != nil {
		return nil, nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := bs.client.Bucket(cfg.name).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	attrs := &ObjectAttrs{
		Size:        r.Attrs.Size,
		ContentType: r.Attrs.ContentType,
		Updated:     r.Attrs.LastModified,
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, attrs, nil
}

func (bs *bucketService) GetPublicURL(category BucketCategory, key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	var cfg bucketConfig
	switch category {
	case BucketCategoryAvatar:
		cfg = bs.avatar
	case BucketCategoryMaterial:
		cfg = bs.material
	}
	if cfg.name == "" {
		return ""
	}
	if cfg.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", cfg.cdnDomain, key)
	}
	if bs.cfg.Mode == ObjectStorageModeGCSEmulator && bs.publicBaseURL != "" {
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", bs.publicBaseURL, url.PathEscape(cfg.name), url.PathEscape(key))
	}
	if bs.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", bs.publicBaseURL, cfg.name, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", cfg.name, key)
}

// ObjectKey builds "<owner>/<uuid><ext>" so uploads never collide or leak the original name.
func ObjectKey(ownerID uuid.UUID, filename string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("%s/%s%s", ownerID, uuid.New(), ext)
}

func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch path.Ext(s) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".md":
		return "text/plain; charset=utf-8"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".mp4":
		return "video/mp4"
	default:
		return ""
	}
}
