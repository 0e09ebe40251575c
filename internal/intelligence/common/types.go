// Package common holds the model-serving building blocks shared by the
// prediction pipeline: artifact formats (scalers, label encoders, models),
// the manifest that locates them, the lazily loading ArtifactRegistry, the
// generic BatchProcessor and the IntelligenceMetrics abstraction.
package common

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// ArtifactKind enum
// ---------------------------------------------------------------------------

// ArtifactKind distinguishes the three artifact families a stage needs.
type ArtifactKind string

const (
	KindModel   ArtifactKind = "model"
	KindScaler  ArtifactKind = "scaler"
	KindEncoder ArtifactKind = "encoder"
)

func (k ArtifactKind) String() string { return string(k) }

// ParseArtifactKind accepts the singular or plural kind name.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case "model":
		return KindModel, nil
	case "scaler":
		return KindScaler, nil
	case "encoder":
		return KindEncoder, nil
	}
	return "", fmt.Errorf("unknown artifact kind %q", s)
}

// ---------------------------------------------------------------------------
// OutputKind enum
// ---------------------------------------------------------------------------

// OutputKind tells the pipeline how to interpret a model's output vector.
type OutputKind string

const (
	// OutputLogits are unnormalised class scores; the pipeline applies
	// softmax (or sigmoid for a single binary logit).
	OutputLogits OutputKind = "logits"
	// OutputProbabilities are already normalised.
	OutputProbabilities OutputKind = "probabilities"
	// OutputScalar is a single regression value.
	OutputScalar OutputKind = "scalar"
)

func (o OutputKind) valid() bool {
	switch o {
	case OutputLogits, OutputProbabilities, OutputScalar:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// ArtifactInfo
// ---------------------------------------------------------------------------

// ArtifactInfo describes one loaded artifact.
type ArtifactInfo struct {
	Kind      ArtifactKind `json:"kind"`
	Key       string       `json:"key"`
	File      string       `json:"file"`
	Version   string       `json:"version,omitempty"`
	Detail    string       `json:"detail,omitempty"`
	SizeBytes int64        `json:"size_bytes"`
	LoadedAt  time.Time    `json:"loaded_at"`
}

// ---------------------------------------------------------------------------
// ArtifactStore
// ---------------------------------------------------------------------------

// ArtifactStore opens artifact files by their manifest-relative name.
// Implementations must return an error satisfying errors.Is(err,
// os.ErrNotExist) for a missing file.
type ArtifactStore interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// FSStore serves artifacts from an fs.FS, typically a local directory.
type FSStore struct {
	fsys fs.FS
	root string
}

// NewDirStore returns a store rooted at dir.
func NewDirStore(dir string) *FSStore {
	return &FSStore{fsys: os.DirFS(dir), root: dir}
}

// NewFSStore wraps an arbitrary file system.
func NewFSStore(fsys fs.FS) *FSStore {
	return &FSStore{fsys: fsys}
}

// Root returns the directory the store reads from, if any.
func (s *FSStore) Root() string { return s.root }

// Open opens name relative to the store root. Names that would escape the
// root are rejected by fs.ValidPath.
func (s *FSStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "/"))
	return s.fsys.Open(clean)
}
