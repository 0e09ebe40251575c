package minio

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/AdsorpNET/internal/config"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

type MockMinIOAPI struct {
	mock.Mock
}

func (m *MockMinIOAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]minio.BucketInfo), args.Error(1)
}

func (m *MockMinIOAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinIOAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucketName, opts).Error(0)
}

func (m *MockMinIOAPI) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	args := m.Called(ctx, bucketName, opts)
	return args.Get(0).(<-chan minio.ObjectInfo)
}

func (m *MockMinIOAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockMinIOAPI) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockMinIOAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockMinIOAPI) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return m.Called(ctx, bucketName, objectName, opts).Error(0)
}

type ClientTestSuite struct {
	suite.Suite
	api    *MockMinIOAPI
	client *Client
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	s.client = NewClientWithAPI(s.api, config.MinIOConfig{Bucket: "models", Prefix: "v1"}, nil)
}

func (s *ClientTestSuite) TearDownTest() {
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestApplyDefaults() {
	c := NewClientWithAPI(s.api, config.MinIOConfig{}, nil)
	s.Equal(config.DefaultMinIOBucket, c.Bucket())
	s.Equal(defaultRegion, c.cfg.Region)
	s.Equal("v1", s.client.Prefix())
}

func (s *ClientTestSuite) TestEnsureBucket_Exists() {
	s.api.On("BucketExists", mock.Anything, "models").Return(true, nil)
	s.NoError(s.client.EnsureBucket(context.Background()))
}

func (s *ClientTestSuite) TestEnsureBucket_Creates() {
	s.api.On("BucketExists", mock.Anything, "models").Return(false, nil)
	s.api.On("MakeBucket", mock.Anything, "models", minio.MakeBucketOptions{Region: defaultRegion}).Return(nil)
	s.NoError(s.client.EnsureBucket(context.Background()))
}

func (s *ClientTestSuite) TestEnsureBucket_Failure() {
	s.api.On("BucketExists", mock.Anything, "models").Return(false, stderrors.New("access denied"))
	err := s.client.EnsureBucket(context.Background())
	s.True(errors.IsCode(err, errors.ErrCodeStorageError))
}

func (s *ClientTestSuite) TestHealthCheck() {
	s.api.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo{{Name: "models"}}, nil).Once()
	s.api.On("BucketExists", mock.Anything, "models").Return(true, nil).Once()
	status, err := s.client.HealthCheck(context.Background())
	s.Require().NoError(err)
	s.True(status.Healthy)
	s.True(status.BucketExists)

	s.api.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo(nil), stderrors.New("dial tcp")).Once()
	status, err = s.client.HealthCheck(context.Background())
	s.Error(err)
	s.False(status.Healthy)
	s.Equal("dial tcp", status.Error)
}

func (s *ClientTestSuite) TestClose() {
	s.NoError(s.client.Close())
	_, err := s.client.HealthCheck(context.Background())
	s.ErrorIs(err, ErrMinIOClientClosed)

	store := NewArtifactStore(s.client, nil)
	_, err = store.Open(context.Background(), "manifest.yaml")
	s.ErrorIs(err, ErrMinIOClientClosed)
	s.ErrorIs(store.Upload(context.Background(), "x", bytes.NewReader(nil), 0), ErrMinIOClientClosed)
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
