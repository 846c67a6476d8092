package export

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Sink receives the artifacts of an export package
type Sink interface {
	Put(ctx context.Context, artifact Artifact) error
	Close() error
}

// DirSink writes artifacts as files under Dir
type DirSink struct {
	Dir string
}

// NewDirSink creates a sink writing under dir
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

func (d *DirSink) Put(_ context.Context, artifact Artifact) error {
	target := filepath.Join(d.Dir, filepath.FromSlash(artifact.Name()))
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(target, artifact.Data, 0644)
}

func (d *DirSink) Close() error {
	return nil
}

// ArchiveSink streams artifacts into a zstd-compressed tar archive
type ArchiveSink struct {
	encoder *zstd.Encoder
	tar     *tar.Writer
	modTime time.Time
}

// NewArchiveSink writes the archive to w. Closing the sink flushes the
// archive but does not close w.
func NewArchiveSink(w io.Writer) (*ArchiveSink, error) {
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	return &ArchiveSink{
		encoder: encoder,
		tar:     tar.NewWriter(encoder),
		modTime: time.Now(),
	}, nil
}

func (a *ArchiveSink) Put(_ context.Context, artifact Artifact) error {
	hdr := &tar.Header{
		Name:    artifact.Name(),
		Mode:    0644,
		Size:    int64(len(artifact.Data)),
		ModTime: a.modTime,
	}
	if err := a.tar.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := a.tar.Write(artifact.Data); err != nil {
		return fmt.Errorf("failed to write tar entry: %w", err)
	}
	return nil
}

func (a *ArchiveSink) Close() error {
	if err := a.tar.Close(); err != nil {
		a.encoder.Close()
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	return a.encoder.Close()
}

// S3Config configures an S3Sink
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is prepended to every object key
	Prefix string
}

// S3Sink uploads artifacts to an S3-compatible bucket
type S3Sink struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

// NewS3Sink validates cfg and builds the client. No request is made until
// the first Put.
func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
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
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Sink{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Key returns the object key artifact is stored under
func (s *S3Sink) Key(artifact Artifact) string {
	if s.prefix == "" {
		return artifact.Name()
	}
	return s.prefix + "/" + artifact.Name()
}

func (s *S3Sink) Put(ctx context.Context, artifact Artifact) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.Key(artifact), bytes.NewReader(artifact.Data), int64(len(artifact.Data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func (s *S3Sink) Close() error {
	return nil
}
