package aws_s3

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/IliaW/page-capture/config"
	"github.com/IliaW/page-capture/internal/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	crd "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/patrickmn/go-cache"
)

type BucketClient interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, artifact *model.Artifact) (*model.UploadResult, error)
	PresignGet(ctx context.Context, key string) (string, error)
	Bucket() string
}

// ObjectAPI is the subset of *s3.Client used by S3BucketClient.
type ObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignAPI is the subset of *s3.PresignClient used by S3BucketClient.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput,
		optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// UploadAPI is implemented by *manager.Uploader.
type UploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput,
		opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3BucketClient struct {
	client     ObjectAPI
	presigner  PresignAPI
	uploader   UploadAPI
	partSize   int64
	cfg        *config.S3Config
	localCache *cache.Cache
	reuseFor   time.Duration
}

func NewS3BucketClient(cfg *config.Config) *S3BucketClient {
	slog.Info("connecting to s3...")

	c, err := connect(cfg)
	if err != nil {
		slog.Error("failed to connect to s3.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return NewBucketClientFromAPI(c, s3.NewPresignClient(c), manager.NewUploader(c), cfg.S3Settings)
}

// maxReuseShare bounds how long a presigned url is handed out again: at most
// 1/12 of its validity, so callers always get 11/12 of it (55m of 1h).
const maxReuseShare = 12

type presignedURL struct {
	url      string
	signedAt time.Time
}

func NewBucketClientFromAPI(client ObjectAPI, presigner PresignAPI, uploader UploadAPI,
	cfg *config.S3Config) *S3BucketClient {
	bc := &S3BucketClient{
		client:    client,
		presigner: presigner,
		uploader:  uploader,
		partSize:  manager.DefaultUploadPartSize,
		cfg:       cfg,
	}
	bc.reuseFor = reuseWindow(cfg.PresignCacheTtl, bc.presignExpires())
	bc.localCache = cache.New(bc.reuseFor, 2*bc.reuseFor)

	return bc
}

// reuseWindow is presign_cache_ttl capped to expires/maxReuseShare. It is never
// zero since go-cache treats a zero ttl as no expiration.
func reuseWindow(configured, expires time.Duration) time.Duration {
	limit := expires / maxReuseShare
	if limit <= 0 {
		limit = time.Second
	}
	if configured <= 0 || configured > limit {
		return limit
	}
	return configured
}

func (bc *S3BucketClient) Bucket() string {
	return bc.cfg.BucketName
}

func (bc *S3BucketClient) Exists(ctx context.Context, key string) (bool, error) {
	_, err := bc.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bc.cfg.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			slog.Debug("object not found in s3.", slog.String("key", key))
			return false, nil
		}
		slog.Error("failed to check object in s3.", slog.String("key", key), slog.String("err", err.Error()))
		return false, err
	}

	return true, nil
}

// Put stores artifact under key. Artifacts larger than one part (mostly
// mhtml snapshots) go through the multipart uploader.
func (bc *S3BucketClient) Put(ctx context.Context, key string, artifact *model.Artifact) (*model.UploadResult, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bc.cfg.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(artifact.Body),
		ContentType: aws.String(artifact.ContentType),
	}

	var res *model.UploadResult
	if int64(len(artifact.Body)) > bc.partSize {
		out, err := bc.uploader.Upload(ctx, input)
		if err != nil {
			slog.Error("failed to upload object to s3.", slog.String("key", key), slog.String("err", err.Error()))
			return nil, err
		}
		res = &model.UploadResult{ETag: aws.ToString(out.ETag), VersionId: aws.ToString(out.VersionID)}
	} else {
		input.ContentLength = aws.Int64(int64(len(artifact.Body)))
		out, err := bc.client.PutObject(ctx, input)
		if err != nil {
			slog.Error("failed to save object to s3.", slog.String("key", key), slog.String("err", err.Error()))
			return nil, err
		}
		res = &model.UploadResult{ETag: aws.ToString(out.ETag), VersionId: aws.ToString(out.VersionId)}
	}
	bc.localCache.Delete(key)
	slog.Debug("object saved to s3.", slog.String("key", key), slog.Int("size", len(artifact.Body)))

	return res, nil
}

// PresignGet returns a time-limited GET url for key. A url is reused only
// while most of its validity remains.
func (bc *S3BucketClient) PresignGet(ctx context.Context, key string) (string, error) {
	if v, ok := bc.localCache.Get(key); ok {
		if p := v.(*presignedURL); time.Since(p.signedAt) < bc.reuseFor {
			return p.url, nil
		}
		bc.localCache.Delete(key)
	}

	req, err := bc.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bc.cfg.BucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(bc.presignExpires()))
	if err != nil {
		slog.Error("failed to presign s3 url.", slog.String("key", key), slog.String("err", err.Error()))
		return "", err
	}
	bc.localCache.SetDefault(key, &presignedURL{url: req.URL, signedAt: time.Now()})

	return req.URL, nil
}

func (bc *S3BucketClient) presignExpires() time.Duration {
	if bc.cfg.PresignExpires <= 0 {
		return time.Hour
	}
	return bc.cfg.PresignExpires
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func connect(cfg *config.Config) (*s3.Client, error) {
	s3Config, err := awsCfg.LoadDefaultConfig(context.Background(), awsCfg.WithRegion(cfg.S3Settings.Region))
	if err != nil {
		slog.Error("failed to load s3 config.", slog.String("err", err.Error()))
		return nil, err
	}

	if cfg.Env == "local" {
		s3Config.BaseEndpoint = &cfg.S3Settings.AwsBaseEndpoint // for LocalStack
		s3Config.Credentials = crd.NewStaticCredentialsProvider("test", "test", "")
		// LocalStack does not support `virtual host addressing style` that uses s3 by default.
		// Set 'local' Env variable to use this configuration.
		slog.Warn("test configuration for S3")
		return s3.NewFromConfig(s3Config, func(o *s3.Options) {
			o.UsePathStyle = true
		}), nil
	}

	return s3.NewFromConfig(s3Config), nil
}
