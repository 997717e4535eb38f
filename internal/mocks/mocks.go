// Package mocks holds testify mocks of the service collaborators.
package mocks

import (
	"context"

	"github.com/IliaW/page-capture/internal/model"
	"github.com/stretchr/testify/mock"
)

type BucketClient struct {
	mock.Mock
}

func (m *BucketClient) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *BucketClient) Put(ctx context.Context, key string, artifact *model.Artifact) (*model.UploadResult, error) {
	args := m.Called(key, artifact)
	res, _ := args.Get(0).(*model.UploadResult)
	return res, args.Error(1)
}

func (m *BucketClient) PresignGet(ctx context.Context, key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *BucketClient) Bucket() string {
	return "page-capture"
}

type Capturer struct {
	mock.Mock
}

func (m *Capturer) Screenshot(ctx context.Context, url string, ratio float64) (*model.Artifact, error) {
	args := m.Called(url, ratio)
	a, _ := args.Get(0).(*model.Artifact)
	return a, args.Error(1)
}

func (m *Capturer) Content(ctx context.Context, url string) (*model.Artifact, error) {
	args := m.Called(url)
	a, _ := args.Get(0).(*model.Artifact)
	return a, args.Error(1)
}

func (m *Capturer) Snapshot(ctx context.Context, url string) (*model.Artifact, error) {
	args := m.Called(url)
	a, _ := args.Get(0).(*model.Artifact)
	return a, args.Error(1)
}

type CachedClient struct {
	mock.Mock
}

func (m *CachedClient) IsCaptured(key string) bool {
	return m.Called(key).Bool(0)
}

func (m *CachedClient) SaveCaptured(key string, force bool) {
	m.Called(key, force)
}

func (m *CachedClient) Close() {}

type MetadataStorage struct {
	mock.Mock
}

func (m *MetadataStorage) Save(meta *model.CaptureMetadata) {
	m.Called(meta)
}

type CaptureService struct {
	mock.Mock
}

func (m *CaptureService) Screenshot(ctx context.Context, req *model.CaptureRequest) (*model.CaptureResult, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*model.CaptureResult)
	return res, args.Error(1)
}

func (m *CaptureService) Download(ctx context.Context, req *model.CaptureRequest) (*model.CaptureResult, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*model.CaptureResult)
	return res, args.Error(1)
}

func (m *CaptureService) Capture(ctx context.Context, req *model.CaptureRequest) (*model.CaptureResult, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*model.CaptureResult)
	return res, args.Error(1)
}

type DeadLetterQueue struct {
	mock.Mock
}

func (m *DeadLetterQueue) SendUrlToDLQ(value string, err error) {
	m.Called(value, err)
}
