package minio

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/AdsorpNET/internal/config"
	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
	"github.com/turtacn/AdsorpNET/internal/testutil"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// fakeAPI is an in-memory bucket.
type fakeAPI struct {
	mu      sync.Mutex
	objects map[string][]byte
	modTime time.Time
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string][]byte{}, modTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeAPI) ListBuckets(context.Context) ([]minio.BucketInfo, error) {
	return []minio.BucketInfo{{Name: "models"}}, nil
}

func (f *fakeAPI) BucketExists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeAPI) MakeBucket(context.Context, string, minio.MakeBucketOptions) error { return nil }

func (f *fakeAPI) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	ch := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		ch <- minio.ObjectInfo{Key: k, Size: int64(len(f.objects[k])), ETag: "etag-" + k, LastModified: f.modTime}
	}
	close(ch)
	return ch
}

func (f *fakeAPI) PutObject(_ context.Context, _, objectName string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	f.objects[objectName] = data
	f.mu.Unlock()
	return minio.UploadInfo{Key: objectName, Size: int64(len(data))}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, _, objectName string, _ minio.GetObjectOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectName]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey"}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeAPI) StatObject(_ context.Context, _, objectName string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectName]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}
	}
	return minio.ObjectInfo{Key: objectName, Size: int64(len(data)), ETag: "etag-" + objectName, LastModified: f.modTime}, nil
}

func (f *fakeAPI) RemoveObject(_ context.Context, _, objectName string, _ minio.RemoveObjectOptions) error {
	f.mu.Lock()
	delete(f.objects, objectName)
	f.mu.Unlock()
	return nil
}

func newFakeStore(prefix string) (*fakeAPI, *ArtifactStore) {
	api := newFakeAPI()
	client := NewClientWithAPI(api, config.MinIOConfig{Bucket: "models", Prefix: prefix}, nil)
	return api, NewArtifactStore(client, nil)
}

func TestArtifactStore_UploadOpenStat(t *testing.T) {
	api, store := newFakeStore("releases/v1")
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "models/ligand.json", strings.NewReader(`{"kind":"linear"}`), 17))
	assert.Contains(t, api.objects, "releases/v1/models/ligand.json")

	rc, err := store.Open(ctx, "models/ligand.json")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, `{"kind":"linear"}`, string(body))

	info, err := store.Stat(ctx, "models/ligand.json")
	require.NoError(t, err)
	assert.Equal(t, int64(17), info.Size)
	assert.Equal(t, "models/ligand.json", info.Name)
}

func TestArtifactStore_MissingIsNotExist(t *testing.T) {
	_, store := newFakeStore("")

	_, err := store.Open(context.Background(), "models/absent.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactNotFound))

	_, err = store.Stat(context.Background(), "models/absent.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestArtifactStore_KeysAreCleaned(t *testing.T) {
	_, store := newFakeStore("p")
	assert.Equal(t, "p/models/a.json", store.key("../models/./a.json"))
	assert.Equal(t, "models/a.json", store.name("p/models/a.json"))

	_, bare := newFakeStore("")
	assert.Equal(t, "models/a.json", bare.key("/models/a.json"))
}

func TestArtifactStore_PushAndList(t *testing.T) {
	_, store := newFakeStore("v2")
	ctx := context.Background()

	n, err := store.Push(ctx, fstest.MapFS{
		"manifest.yaml":        {Data: []byte("version: v2\n")},
		"scalers/ligand.json":  {Data: []byte("{}")},
		"encoders/ligand.json": {Data: []byte(`{"classes":["BTC"]}`)},
		"models/ligand.json":   {Data: []byte("{}")},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	list, err := store.List(ctx)
	require.NoError(t, err)
	names := make([]string, len(list))
	for i, o := range list {
		names[i] = o.Name
	}
	assert.Equal(t, []string{"encoders/ligand.json", "manifest.yaml", "models/ligand.json", "scalers/ligand.json"}, names)

	require.NoError(t, store.Remove(ctx, "manifest.yaml"))
	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestArtifactStore_ListError(t *testing.T) {
	api := new(MockMinIOAPI)
	ch := make(chan minio.ObjectInfo, 1)
	ch <- minio.ObjectInfo{Err: stderrors.New("access denied")}
	close(ch)
	api.On("ListObjects", mock.Anything, "models", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))

	store := NewArtifactStore(NewClientWithAPI(api, config.MinIOConfig{Bucket: "models"}, nil), nil)
	_, err := store.List(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageError))
}

func TestArtifactStore_BackendErrorIsStorageError(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("StatObject", mock.Anything, "models", "m.json", mock.Anything).
		Return(minio.ObjectInfo{}, stderrors.New("connection reset"))

	store := NewArtifactStore(NewClientWithAPI(api, config.MinIOConfig{Bucket: "models"}, nil), nil)
	_, err := store.Open(context.Background(), "m.json")
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageError))
	assert.False(t, stderrors.Is(err, fs.ErrNotExist))
}

func TestArtifactStore_ServesRegistry(t *testing.T) {
	_, store := newFakeStore("releases")
	ctx := context.Background()
	set := testutil.NewArtifactSet("remote-1")

	n, err := store.Push(ctx, set.FS(t))
	require.NoError(t, err)
	assert.Equal(t, len(set.Files(t)), n)

	manifest, err := common.LoadManifest(ctx, store, testutil.ManifestName)
	require.NoError(t, err)
	assert.Equal(t, "remote-1", manifest.Version)

	loader, err := common.NewStoreLoader(store, manifest)
	require.NoError(t, err)
	reg, err := common.NewArtifactRegistry(loader, nil, nil)
	require.NoError(t, err)

	model, err := reg.GetModel(ctx, synthesis.StageLigand.String())
	require.NoError(t, err)
	assert.NotNil(t, model)
	enc, err := reg.GetEncoder(ctx, synthesis.StageLigand.String())
	require.NoError(t, err)
	assert.Equal(t, []string{"BDC", "BTB", "BTC", "NH2-BDC"}, enc.Classes)
}
