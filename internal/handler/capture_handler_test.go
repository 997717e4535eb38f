package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/IliaW/page-capture/config"
	"github.com/IliaW/page-capture/internal"
	"github.com/IliaW/page-capture/internal/capture"
	"github.com/IliaW/page-capture/internal/mocks"
	"github.com/IliaW/page-capture/internal/model"
	"github.com/IliaW/page-capture/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const exampleURL = "https://example.com"

var exampleKey = "screenshots/" + internal.HashURL(exampleURL) + ".png"

func newServer(svc capture.Service) *echo.Echo {
	e := echo.New()
	RegisterRoutes(e, NewCaptureHandler(svc))
	return e
}

func get(e *echo.Echo, path string, query url.Values) *httptest.ResponseRecorder {
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestScreenshotEndToEnd(t *testing.T) {
	bucket, capturer := new(mocks.BucketClient), new(mocks.Capturer)
	artifact := &model.Artifact{Body: []byte("\x89PNG"), ContentType: model.ContentTypePNG}
	bucket.On("Exists", exampleKey).Return(false, nil).Once()
	bucket.On("Exists", exampleKey).Return(true, nil)
	capturer.On("Screenshot", exampleURL, 1.0).Return(artifact, nil)
	bucket.On("Put", exampleKey, artifact).Return(&model.UploadResult{ETag: `"etag"`}, nil)
	e := newServer(&capture.CaptureService{
		Cfg:     &config.Config{S3Settings: &config.S3Config{}},
		S3:      bucket,
		Browser: capturer,
		Metrics: telemetry.NoopMetrics().AppMetrics,
	})

	rec := get(e, "/screenshot", url.Values{"url": {exampleURL}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, capture.MsgScreenshotStored, body["message"])
	assert.Equal(t, exampleKey, body["path"])
	assert.Equal(t, map[string]any{"ETag": `"etag"`}, body["s3Response"])

	rec = get(e, "/screenshot", url.Values{"url": {exampleURL}})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, capture.MsgScreenshotExists, body["message"])
	assert.Equal(t, exampleKey, body["path"])
	assert.NotContains(t, body, "s3Response")

	capturer.AssertNumberOfCalls(t, "Screenshot", 1)
}

func TestScreenshotBadRequests(t *testing.T) {
	cases := []struct {
		name  string
		query url.Values
		body  string
	}{
		{"missing url", url.Values{}, capture.MsgNoURL},
		{"malformed url", url.Values{"url": {"not a url"}}, capture.MsgInvalidURL},
		{"bad ratio", url.Values{"url": {exampleURL}, "ratio": {"-2"}}, capture.MsgInvalidRatio},
		{"zero ratio", url.Values{"url": {exampleURL}, "ratio": {"0"}}, capture.MsgInvalidRatio},
		{"malformed url wins over bad ratio", url.Values{"url": {"not a url"}, "ratio": {"x"}}, capture.MsgInvalidURL},
		{"missing url wins over bad ratio", url.Values{"ratio": {"x"}}, capture.MsgNoURL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bucket, capturer := new(mocks.BucketClient), new(mocks.Capturer)
			metrics := telemetry.NoopMetrics().AppMetrics
			var invalid int64
			metrics.InvalidInputCnt = func(n int64) { invalid += n }
			e := newServer(&capture.CaptureService{
				Cfg:     &config.Config{S3Settings: &config.S3Config{}},
				S3:      bucket,
				Browser: capturer,
				Metrics: metrics,
			})

			rec := get(e, "/screenshot", tc.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.body, rec.Body.String())
			assert.Equal(t, int64(1), invalid)
			assert.Empty(t, bucket.Calls)
			assert.Empty(t, capturer.Calls)
		})
	}
}

func TestScreenshotPassesParameters(t *testing.T) {
	svc := new(mocks.CaptureService)
	svc.On("Screenshot", &model.CaptureRequest{URL: exampleURL, Mode: model.Screenshot, Ratio: 2, Force: true}).
		Return(&model.CaptureResult{Message: capture.MsgScreenshotStored, Path: exampleKey}, nil)

	rec := get(newServer(svc), "/screenshot", url.Values{"url": {exampleURL}, "ratio": {"2"}, "force": {"true"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestBackendFailureIsGeneric500(t *testing.T) {
	svc := new(mocks.CaptureService)
	svc.On("Screenshot", mock.Anything).Return(nil, errors.Join(capture.ErrBackendFailure, errors.New("chrome crashed")))
	svc.On("Download", mock.Anything).Return(nil, errors.Join(capture.ErrBackendFailure, errors.New("s3 down")))
	e := newServer(svc)

	for _, path := range []string{"/screenshot", "/website"} {
		rec := get(e, path, url.Values{"url": {exampleURL}})
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Equal(t, map[string]any{"error": MsgServerError}, decode(t, rec))
	}
}

func TestWebsiteModes(t *testing.T) {
	svc := new(mocks.CaptureService)
	svc.On("Download", &model.CaptureRequest{URL: exampleURL, Mode: model.Content}).
		Return(&model.CaptureResult{Message: capture.MsgContentStored, Path: "downloads/h/index.html",
			URL: "https://signed/index.html"}, nil)
	svc.On("Download", &model.CaptureRequest{URL: exampleURL, Mode: model.Snapshot}).
		Return(&model.CaptureResult{Message: capture.MsgContentStored, Path: "downloads/h/index.mhtml",
			URL: "https://signed/index.mhtml"}, nil)
	e := newServer(svc)

	rec := get(e, "/website", url.Values{"url": {exampleURL}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, capture.MsgContentStored, body["message"])
	assert.Equal(t, "downloads/h/index.html", body["path"])
	assert.Equal(t, "https://signed/index.html", body["url"])

	rec = get(e, "/website", url.Values{"url": {exampleURL}, "mode": {"snapshot"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "downloads/h/index.mhtml", decode(t, rec)["path"])
}

func TestWebsiteMissingUrl(t *testing.T) {
	svc := new(mocks.CaptureService)
	svc.On("Download", mock.Anything).Return(nil, &capture.InputError{Msg: capture.MsgNoURL})

	rec := get(newServer(svc), "/website", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, capture.MsgNoURL, rec.Body.String())
}

func TestPing(t *testing.T) {
	rec := get(newServer(new(mocks.CaptureService)), "/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}
