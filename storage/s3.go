package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"rera_crawler/models"
)

// S3Config holds configuration for S3-compatible storage
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, etc.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string // key prefix for exported output files
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// S3Uploader uploads files to S3-compatible storage
type S3Uploader struct {
	client *s3.Client
	bucket string
}

// NewS3Uploader creates a new S3 uploader
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Uploader{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Upload uploads data to S3 with the given key
func (u *S3Uploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PublicURL returns the public URL for an S3 key
func (u *S3Uploader) PublicURL(key string, cfg S3Config) string {
	if cfg.Endpoint != "" && strings.Contains(cfg.Endpoint, "digitaloceanspaces.com") {
		// DO Spaces: https://{bucket}.{region}.digitaloceanspaces.com/{key}
		host := strings.TrimPrefix(cfg.Endpoint, "https://")
		return fmt.Sprintf("https://%s.%s/%s", cfg.Bucket, host, key)
	}
	// AWS S3: https://{bucket}.s3.{region}.amazonaws.com/{key}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", cfg.Bucket, cfg.Region, key)
}

// Exporter publishes a run's output files after the run finished.
type Exporter struct {
	uploader *S3Uploader
	cfg      S3Config
}

func NewExporter(uploader *S3Uploader, cfg S3Config) *Exporter {
	return &Exporter{uploader: uploader, cfg: cfg}
}

// ExportKey is the object key for file produced by run:
// {prefix}/{mode}/{yyyy-mm-dd}/{run uuid}/{file name}
func ExportKey(prefix string, run *models.CrawlRun, file string) string {
	return path.Join(prefix, string(run.Mode), run.StartedAt.UTC().Format("2006-01-02"),
		run.UUID.String(), filepath.Base(file))
}

func contentTypeFor(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return "text/csv"
	case ".jsonl":
		return "application/x-ndjson"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}

// Export uploads every existing file and returns the public URLs.
func (e *Exporter) Export(ctx context.Context, run *models.CrawlRun, files ...string) ([]string, error) {
	var urls []string
	for _, file := range files {
		f, err := os.Open(file)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return urls, fmt.Errorf("open %s: %w", file, err)
		}

		key := ExportKey(e.cfg.Prefix, run, file)
		err = e.uploader.Upload(ctx, key, f, contentTypeFor(file))
		f.Close()
		if err != nil {
			return urls, fmt.Errorf("upload %s: %w", file, err)
		}
		urls = append(urls, e.uploader.PublicURL(key, e.cfg))
	}
	return urls, nil
}
