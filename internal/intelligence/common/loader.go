package common

import (
	"context"
	"fmt"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// ArtifactLoader reads and decodes artifacts. classes is the encoder class
// count for a classifier model and 0 otherwise; a loader must reject a
// model whose output width does not match it.
type ArtifactLoader interface {
	Load(ctx context.Context, kind ArtifactKind, key string, classes int) (interface{}, ArtifactInfo, error)
	EncoderFor(modelKey string) (string, bool)
	Keys(kind ArtifactKind) []string
	Version() string
}

// StoreLoader resolves keys through a Manifest and reads files from an
// ArtifactStore.
type StoreLoader struct {
	store    ArtifactStore
	manifest *Manifest
}

// NewStoreLoader binds a manifest to the store holding its files.
func NewStoreLoader(store ArtifactStore, manifest *Manifest) (*StoreLoader, error) {
	if store == nil {
		return nil, errors.NewInvalidInputError("artifact store cannot be nil")
	}
	if manifest == nil {
		return nil, errors.NewInvalidInputError("manifest cannot be nil")
	}
	return &StoreLoader{store: store, manifest: manifest}, nil
}

// Manifest returns the bound manifest.
func (l *StoreLoader) Manifest() *Manifest { return l.manifest }

func (l *StoreLoader) EncoderFor(modelKey string) (string, bool) {
	return l.manifest.EncoderFor(modelKey)
}

func (l *StoreLoader) Keys(kind ArtifactKind) []string { return l.manifest.Keys(kind) }

func (l *StoreLoader) Version() string { return l.manifest.Version }

// Load opens and decodes kind/key.
func (l *StoreLoader) Load(ctx context.Context, kind ArtifactKind, key string, classes int) (interface{}, ArtifactInfo, error) {
	info := ArtifactInfo{Kind: kind, Key: key, Version: l.manifest.Version}
	file, ok := l.manifest.File(kind, key)
	if !ok {
		return nil, info, errors.ArtifactNotFound(kind.String(), key)
	}
	info.File = file

	rc, err := l.store.Open(ctx, file)
	if err != nil {
		return nil, info, errors.ArtifactLoad(err, kind.String(), key)
	}
	defer rc.Close()

	switch kind {
	case KindScaler:
		s, err := DecodeScaler(rc)
		if err != nil {
			return nil, info, errors.ArtifactLoad(err, kind.String(), key)
		}
		info.SizeBytes = s.footprint()
		info.Detail = fmt.Sprintf("%s, %d features", s.Kind, s.Len())
		return s, info, nil

	case KindEncoder:
		e, err := DecodeLabelEncoder(rc)
		if err != nil {
			return nil, info, errors.ArtifactLoad(err, kind.String(), key)
		}
		info.SizeBytes = e.footprint()
		info.Detail = fmt.Sprintf("%d classes", e.Len())
		return e, info, nil

	case KindModel:
		m, err := DecodeModel(rc)
		if err != nil {
			return nil, info, errors.ArtifactLoad(err, kind.String(), key)
		}
		if classes > 0 {
			if err := CheckClasses(m, classes); err != nil {
				return nil, info, errors.Wrap(err, errors.CodeUnknown, "classifier does not match its encoder").
					WithDetail(fmt.Sprintf("model=%q", key))
			}
		}
		info.SizeBytes = int64(m.ParamCount()) * 8
		info.Detail = fmt.Sprintf("%s %d->%d %s", m.Kind(), m.InputWidth(), m.OutputWidth(), m.Output())
		return m, info, nil
	}
	return nil, info, errors.Newf(errors.ErrCodeArtifactNotFound, "unknown artifact kind %q", kind)
}
