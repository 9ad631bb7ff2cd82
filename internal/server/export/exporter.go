// Package export uploads JSON snapshots of all todos to an S3-compatible
// bucket and hands out short-lived download links.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/todokeeper/internal/clockx"
	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/logging"
	sc "github.com/dmitrijs2005/todokeeper/internal/server/config"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/google/uuid"
)

// LinkValidity is how long a presigned download link stays usable.
const LinkValidity = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Source lists todos. services.TodoService satisfies it.
type Source interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.Todo, error)
}

// Snapshot describes an uploaded export.
type Snapshot struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	Count      int       `json:"count"`
	ExportedAt time.Time `json:"exportedAt"`
}

type document struct {
	ExportedAt time.Time     `json:"exportedAt"`
	Count      int           `json:"count"`
	Todos      []models.Todo `json:"todos"`
}

type Exporter struct {
	source  Source
	bucket  string
	client  *s3.Client
	presign *s3.PresignClient
	clock   clockx.Clock
	logger  logging.Logger
}

// New builds an Exporter for the bucket in cfg. It returns
// common.ErrorExportDisabled when no bucket is configured.
func New(ctx context.Context, cfg *sc.Config, source Source, clock clockx.Clock, l logging.Logger) (*Exporter, error) {
	if !cfg.ExportEnabled() {
		return nil, common.ErrorExportDisabled
	}

	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		// MinIO and most S3-compatible stores expect path-style addressing
		o.UsePathStyle = true
	})

	return &Exporter{
		source:  source,
		bucket:  cfg.S3Bucket,
		client:  client,
		presign: newS3PresignClient(client),
		clock:   clock,
		logger:  l.With("module", "export"),
	}, nil
}

// StorageKey returns the object key for an export taken at t.
func StorageKey(t time.Time) string {
	return fmt.Sprintf("todos/%04d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), uuid.New())
}

// Export serializes every todo, uploads the document and returns a
// presigned GET link to it.
func (e *Exporter) Export(ctx context.Context) (*Snapshot, error) {
	items, err := e.source.List(ctx, models.ListFilter{})
	if err != nil {
		return nil, err
	}

	now := e.clock.Now().UTC()
	body, err := json.Marshal(document{ExportedAt: now, Count: len(items), Todos: items})
	if err != nil {
		return nil, fmt.Errorf("%w: encode export: %v", common.ErrorInternal, err)
	}

	key := StorageKey(now)
	_, err = putObject(e.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upload export: %v", common.ErrorInternal, err)
	}

	req, err := presignGetObject(e.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(LinkValidity))
	if err != nil {
		return nil, fmt.Errorf("%w: presign export: %v", common.ErrorInternal, err)
	}

	e.logger.Info(ctx, "export uploaded", "key", key, "count", len(items))
	return &Snapshot{Key: key, URL: req.URL, Count: len(items), ExportedAt: now}, nil
}
