package minio

import (
	"context"
	"io"
	"io/fs"
	"mime"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// ObjectInfo describes one stored artifact file.
type ObjectInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`
}

// ArtifactStore serves artifact files from the configured bucket. Names are
// manifest-relative; the configured prefix is prepended to form object keys.
type ArtifactStore struct {
	client *Client
	logger logging.Logger
}

// NewArtifactStore returns a store over client's bucket and prefix.
func NewArtifactStore(client *Client, log logging.Logger) *ArtifactStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ArtifactStore{client: client, logger: log.Named("artifact_store")}
}

func (s *ArtifactStore) key(name string) string {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if s.client.Prefix() == "" {
		return name
	}
	return path.Join(s.client.Prefix(), name)
}

func (s *ArtifactStore) name(key string) string {
	if p := s.client.Prefix(); p != "" {
		return strings.TrimPrefix(strings.TrimPrefix(key, p), "/")
	}
	return key
}

// Open returns the object body. A missing object yields an error matching
// fs.ErrNotExist.
func (s *ArtifactStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if s.client.isClosed() {
		return nil, ErrMinIOClientClosed
	}
	key := s.key(name)
	if _, err := s.client.api.StatObject(ctx, s.client.Bucket(), key, minio.StatObjectOptions{}); err != nil {
		return nil, s.mapErr(err, key)
	}
	obj, err := s.client.api.GetObject(ctx, s.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr(err, key)
	}
	s.logger.Debug("artifact opened", logging.String("key", key))
	return obj, nil
}

// Stat returns the metadata of one artifact file.
func (s *ArtifactStore) Stat(ctx context.Context, name string) (*ObjectInfo, error) {
	key := s.key(name)
	info, err := s.client.api.StatObject(ctx, s.client.Bucket(), key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.mapErr(err, key)
	}
	return &ObjectInfo{Name: name, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

// List returns every artifact file under the prefix, sorted by name.
func (s *ArtifactStore) List(ctx context.Context) ([]ObjectInfo, error) {
	prefix := s.client.Prefix()
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var out []ObjectInfo
	for obj := range s.client.api.ListObjects(ctx, s.client.Bucket(), minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "failed to list artifacts").
				WithDetail("bucket=" + s.client.Bucket())
		}
		out = append(out, ObjectInfo{Name: s.name(obj.Key), Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Upload stores one artifact file. size may be -1 for unknown length.
func (s *ArtifactStore) Upload(ctx context.Context, name string, r io.Reader, size int64) error {
	if s.client.isClosed() {
		return ErrMinIOClientClosed
	}
	key := s.key(name)
	opts := minio.PutObjectOptions{ContentType: contentType(name)}
	if _, err := s.client.api.PutObject(ctx, s.client.Bucket(), key, r, size, opts); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload artifact").WithDetail("key=" + key)
	}
	s.logger.Info("artifact uploaded", logging.String("key", key), logging.Int64("size", size))
	return nil
}

// Push uploads every regular file of fsys, keeping relative paths. It
// returns the number of files uploaded.
func (s *ArtifactStore) Push(ctx context.Context, fsys fs.FS) (int, error) {
	n := 0
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if err := s.Upload(ctx, p, f, info.Size()); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, errors.Wrap(err, errors.ErrCodeStorageError, "artifact push aborted")
	}
	return n, nil
}

// Remove deletes one artifact file.
func (s *ArtifactStore) Remove(ctx context.Context, name string) error {
	key := s.key(name)
	if err := s.client.api.RemoveObject(ctx, s.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to remove artifact").WithDetail("key=" + key)
	}
	return nil
}

func (s *ArtifactStore) mapErr(err error, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.Wrap(fs.ErrNotExist, errors.ErrCodeArtifactNotFound, "artifact object not found").
			WithDetail("key=" + key)
	}
	return errors.Wrap(err, errors.ErrCodeStorageError, "failed to read artifact").WithDetail("key=" + key)
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".yaml", ".yml":
		return "application/yaml"
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

var _ common.ArtifactStore = (*ArtifactStore)(nil)
