package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/todokeeper/internal/clockx"
	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/logging"
	sc "github.com/dmitrijs2005/todokeeper/internal/server/config"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	items []models.Todo
	err   error
}

func (s staticSource) List(context.Context, models.ListFilter) ([]models.Todo, error) {
	return s.items, s.err
}

func testConfig() *sc.Config {
	return &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "todos",
	}
}

// stubAWS replaces the SDK seams for the duration of the test.
func stubAWS(t *testing.T) {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origPut := putObject
	origPresign := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		putObject = origPut
		presignGetObject = origPresign
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}
}

func TestNew_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.S3Bucket = ""

	_, err := New(context.Background(), cfg, staticSource{}, clockx.Real(), logging.Nop())
	assert.ErrorIs(t, err, common.ErrorExportDisabled)
}

func TestNew_AppliesEndpoint(t *testing.T) {
	stubAWS(t)

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return s3.NewFromConfig(cfg)
	}

	e, err := New(context.Background(), testConfig(), staticSource{}, clockx.Real(), logging.Nop())
	require.NoError(t, err)
	require.NotNil(t, e)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNew_LoadConfigError(t *testing.T) {
	stubAWS(t)
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}

	_, err := New(context.Background(), testConfig(), staticSource{}, clockx.Real(), logging.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load-fail")
}

func TestExport_UploadsAndPresigns(t *testing.T) {
	stubAWS(t)

	ts := time.Date(2026, 7, 9, 8, 0, 0, 0, time.UTC)
	items := []models.Todo{{ID: "1", Title: "Buy milk", CreatedAt: ts, UpdatedAt: ts}}

	var uploaded document
	var uploadedKey string
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		assert.Equal(t, "todos", aws.ToString(in.Bucket))
		assert.Equal(t, "application/json", aws.ToString(in.ContentType))
		uploadedKey = aws.ToString(in.Key)
		b, err := io.ReadAll(in.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(b, &uploaded))
		return &s3.PutObjectOutput{}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		assert.Equal(t, LinkValidity, po.Expires)
		assert.Equal(t, uploadedKey, aws.ToString(in.Key))
		return &v4.PresignedHTTPRequest{URL: "http://127.0.0.1:9000/todos/" + aws.ToString(in.Key)}, nil
	}

	e, err := New(context.Background(), testConfig(), staticSource{items: items}, clockx.NewFake(ts), logging.Nop())
	require.NoError(t, err)

	snap, err := e.Export(context.Background())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^todos/2026/07/09/[0-9a-f-]{36}\.json$`), snap.Key)
	assert.Equal(t, uploadedKey, snap.Key)
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, ts, snap.ExportedAt)
	assert.Contains(t, snap.URL, snap.Key)
	assert.Equal(t, 1, uploaded.Count)
	require.Len(t, uploaded.Todos, 1)
	assert.Equal(t, "Buy milk", uploaded.Todos[0].Title)
}

func TestExport_Failures(t *testing.T) {
	stubAWS(t)

	e, err := New(context.Background(), testConfig(), staticSource{err: common.ErrorInternal}, clockx.Real(), logging.Nop())
	require.NoError(t, err)
	_, err = e.Export(context.Background())
	assert.ErrorIs(t, err, common.ErrorInternal)

	putObject = func(*s3.Client, context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("bucket missing")
	}
	e.source = staticSource{}
	_, err = e.Export(context.Background())
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, err.Error(), "bucket missing")

	putObject = func(*s3.Client, context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return &s3.PutObjectOutput{}, nil
	}
	presignGetObject = func(*s3.PresignClient, context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-fail")
	}
	_, err = e.Export(context.Background())
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, err.Error(), "presign-fail")
}

func TestStorageKey(t *testing.T) {
	k1 := StorageKey(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	k2 := StorageKey(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Regexp(t, `^todos/2026/01/02/`, k1)
	assert.NotEqual(t, k1, k2)
}
