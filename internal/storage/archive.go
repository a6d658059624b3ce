package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bdougie/jobtrace/internal/models"
)

type ArchiveConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// FrameArchive uploads the frames of an analyzed session to an S3
// compatible bucket under <session>/frame_NNNNNN.<ext>.
type FrameArchive struct {
	client   objectStore
	bucket   string
	region   string
	logger   *slog.Logger
	initOnce sync.Once
	initErr  error
}

func NewFrameArchive(cfg ArchiveConfig, logger *slog.Logger) (*FrameArchive, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("archive access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init archive client: %w", err)
	}
	return newFrameArchive(client, bucket, region, logger), nil
}

func newFrameArchive(client objectStore, bucket, region string, logger *slog.Logger) *FrameArchive {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameArchive{
		client: client,
		bucket: bucket,
		region: region,
		logger: logger.With("component", "frame_archive"),
	}
}

func (a *FrameArchive) ensureBucket(ctx context.Context) error {
	a.initOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.initErr = err
			return
		}
		if exists {
			return
		}
		a.initErr = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region})
	})
	return a.initErr
}

// ArchiveFrames uploads every readable frame. Frames whose bytes are gone
// are skipped; the first upload error aborts the rest.
func (a *FrameArchive) ArchiveFrames(ctx context.Context, session string, frames []models.Frame) error {
	session = strings.TrimSpace(session)
	if session == "" {
		return fmt.Errorf("session is required")
	}
	if len(frames) == 0 {
		return nil
	}
	if err := a.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	uploaded := 0
	for _, f := range frames {
		data, err := f.Bytes()
		if err != nil {
			a.logger.Warn("skipping unreadable frame", "seq", f.Seq, "error", err)
			continue
		}
		key := FrameKey(session, f)
		_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: f.MIMEType,
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		uploaded++
	}
	a.logger.Info("archived frames", "session", session, "count", uploaded, "bucket", a.bucket)
	return nil
}

// FrameKey is the object key of a frame within a session.
func FrameKey(session string, f models.Frame) string {
	return fmt.Sprintf("%s/frame_%06d%s", strings.TrimSpace(session), f.Seq, objectExt(f.MIMEType))
}

func objectExt(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	default:
		return ".jpg"
	}
}

