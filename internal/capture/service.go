// Package capture implements the capture pipeline shared by the http handlers,
// the kafka worker and the cli:
//
//	validate -> derive key -> existence check -> capture -> upload -> respond
//
// An existing artifact short-circuits the pipeline unless the request is forced.
package capture

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/IliaW/page-capture/config"
	"github.com/IliaW/page-capture/internal/aws_s3"
	"github.com/IliaW/page-capture/internal/browser"
	"github.com/IliaW/page-capture/internal/cache"
	"github.com/IliaW/page-capture/internal/model"
	"github.com/IliaW/page-capture/internal/persistence"
	"github.com/IliaW/page-capture/internal/telemetry"
)

const (
	MsgScreenshotExists = "Screenshot already exists"
	MsgScreenshotStored = "Screenshot taken and stored on S3"
	MsgContentExists    = "Content already exists"
	MsgContentStored    = "Content downloaded and stored on S3"
)

// Service is safe for concurrent use as long as its collaborators are.
type Service interface {
	Screenshot(ctx context.Context, req *model.CaptureRequest) (*model.CaptureResult, error)
	Download(ctx context.Context, req *model.CaptureRequest) (*model.CaptureResult, error)
	Capture(ctx context.Context, req *model.CaptureRequest) (*model.CaptureResult, error)
}

type CaptureService struct {
	Cfg     *config.Config
	S3      aws_s3.BucketClient
	Browser browser.Capturer
	Cache   cache.CachedClient
	Db      persistence.MetadataStorage
	Events  chan<- *model.CaptureEvent // nil when kafka is disabled
	Metrics *telemetry.AppMetrics

	eventsMu     sync.RWMutex
	eventsClosed bool
}

// Capture dispatches on req.Mode.
func (s *CaptureService) Capture(ctx context.Context, req *model.CaptureRequest) (*model.CaptureResult, error) {
	if req.Mode == model.Screenshot {
		return s.Screenshot(ctx, req)
	}
	return s.Download(ctx, req)
}

func (s *CaptureService) Screenshot(ctx context.Context, req *model.CaptureRequest) (*model.CaptureResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	key := ArtifactKey(s.Cfg.S3Settings, model.Screenshot, req.URL)

	exists, err := s.exists(ctx, key, req.Force)
	if err != nil {
		return nil, s.fail("existence check", err)
	}
	if exists {
		slog.Debug("screenshot already exists.", slog.String("key", key))
		s.Metrics.SkippedCnt(1)
		return &model.CaptureResult{Message: MsgScreenshotExists, Path: key, Skipped: true}, nil
	}

	slog.Info("taking screenshot.", slog.String("url", req.URL), slog.Float64("ratio", ratioOrDefault(req.Ratio)),
		slog.Bool("force", req.Force))
	start := time.Now()
	artifact, err := s.Browser.Screenshot(ctx, req.URL, ratioOrDefault(req.Ratio))
	if err != nil {
		return nil, s.fail("screenshot", err)
	}

	upload, err := s.store(ctx, req, model.Screenshot, key, artifact, time.Since(start))
	if err != nil {
		return nil, s.fail("upload", err)
	}

	return &model.CaptureResult{Message: MsgScreenshotStored, Path: key, S3Response: upload}, nil
}

func (s *CaptureService) Download(ctx context.Context, req *model.CaptureRequest) (*model.CaptureResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == model.Screenshot {
		mode = model.Content
	}
	key := ArtifactKey(s.Cfg.S3Settings, mode, req.URL)

	exists, err := s.exists(ctx, key, req.Force)
	if err != nil {
		return nil, s.fail("existence check", err)
	}
	if exists {
		slog.Debug("content already exists.", slog.String("key", key))
		publicUrl, err := s.S3.PresignGet(ctx, key)
		if err != nil {
			return nil, s.fail("presign", err)
		}
		s.Metrics.SkippedCnt(1)
		return &model.CaptureResult{Message: MsgContentExists, Path: key, URL: publicUrl, Skipped: true}, nil
	}

	slog.Info("downloading page.", slog.String("url", req.URL), slog.String("mode", mode.String()),
		slog.Bool("force", req.Force))
	start := time.Now()
	var artifact *model.Artifact
	if mode == model.Snapshot {
		artifact, err = s.Browser.Snapshot(ctx, req.URL)
	} else {
		artifact, err = s.Browser.Content(ctx, req.URL)
	}
	if err != nil {
		return nil, s.fail("download", err)
	}

	if _, err = s.store(ctx, req, mode, key, artifact, time.Since(start)); err != nil {
		return nil, s.fail("upload", err)
	}
	publicUrl, err := s.S3.PresignGet(ctx, key)
	if err != nil {
		return nil, s.fail("presign", err)
	}

	return &model.CaptureResult{Message: MsgContentStored, Path: key, URL: publicUrl}, nil
}

// validate checks the url first so its message wins over a bad ratio.
// Ratio 0 means the default.
func (s *CaptureService) validate(req *model.CaptureRequest) error {
	err := ValidateURL(req.URL)
	if err == nil && (req.Ratio < 0 || math.IsNaN(req.Ratio) || math.IsInf(req.Ratio, 0)) {
		err = &InputError{Msg: MsgInvalidRatio}
	}
	if err != nil {
		s.Metrics.InvalidInputCnt(1)
		return err
	}
	return nil
}

// exists reports whether key is already stored. Forced requests skip the check.
func (s *CaptureService) exists(ctx context.Context, key string, force bool) (bool, error) {
	if force {
		return false, nil
	}
	if s.Cache != nil && s.Cache.IsCaptured(key) {
		return true, nil
	}
	ok, err := s.S3.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if ok && s.Cache != nil {
		s.Cache.SaveCaptured(key, false)
	}
	return ok, nil
}

func (s *CaptureService) store(ctx context.Context, req *model.CaptureRequest, mode model.CaptureMode, key string,
	artifact *model.Artifact, elapsed time.Duration) (*model.UploadResult, error) {
	s.Metrics.CaptureTimeMs(elapsed.Milliseconds())

	upload, err := s.S3.Put(ctx, key, artifact)
	if err != nil {
		return nil, err
	}
	slog.Info("artifact stored on s3.", slog.String("key", key), slog.Int("size", len(artifact.Body)))
	s.Metrics.CapturedCnt(1)

	if s.Cache != nil {
		s.Cache.SaveCaptured(key, req.Force)
	}
	if s.Db != nil {
		s.Db.Save(&model.CaptureMetadata{
			FullURL:              req.URL,
			Mode:                 mode.String(),
			S3Key:                key,
			ContentType:          artifact.ContentType,
			SizeBytes:            len(artifact.Body),
			TimeToCapture:        elapsed.Milliseconds(),
			CaptureWorkerVersion: s.Cfg.Version,
		})
	}
	s.publish(ctx, &model.CaptureEvent{
		S3Bucket: s.S3.Bucket(),
		S3Key:    key,
		URL:      req.URL,
		Mode:     mode.String(),
		Force:    req.Force,
	})

	return upload, nil
}

// CloseEvents closes Events. Captures finishing afterwards drop their event
// instead of sending on the closed channel.
func (s *CaptureService) CloseEvents() {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if s.Events == nil || s.eventsClosed {
		return
	}
	s.eventsClosed = true
	close(s.Events)
}

func (s *CaptureService) publish(ctx context.Context, event *model.CaptureEvent) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	if s.Events == nil {
		return
	}
	if s.eventsClosed {
		slog.Warn("capture event dropped. events channel is closed.", slog.String("key", event.S3Key))
		return
	}
	select {
	case s.Events <- event:
	case <-ctx.Done():
		slog.Warn("capture event dropped.", slog.String("key", event.S3Key), slog.String("err", ctx.Err().Error()))
	}
}

func (s *CaptureService) fail(stage string, err error) error {
	slog.Error(stage+" failed.", slog.String("err", err.Error()))
	s.Metrics.FailedCnt(1)
	return backendFailure(stage, err)
}

func ratioOrDefault(r float64) float64 {
	if r <= 0 {
		return 1
	}
	return r
}
