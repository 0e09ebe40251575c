package common

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// ModelEntry locates a model file. Encoder names the label encoder a
// classifier decodes through; it is empty for binary and regression models.
type ModelEntry struct {
	File    string `yaml:"file" json:"file"`
	Encoder string `yaml:"encoder,omitempty" json:"encoder,omitempty"`
}

// Manifest maps artifact keys to files inside an ArtifactStore.
//
//	version: "2024.06"
//	models:
//	  ligand: {file: models/ligand.json, encoder: ligand}
//	scalers:
//	  ligand: scalers/ligand.json
//	encoders:
//	  ligand: encoders/ligand.json
type Manifest struct {
	Version  string                `yaml:"version" json:"version"`
	Models   map[string]ModelEntry `yaml:"models" json:"models"`
	Scalers  map[string]string     `yaml:"scalers" json:"scalers"`
	Encoders map[string]string     `yaml:"encoders" json:"encoders"`
}

// NewManifest returns an empty manifest.
func NewManifest(version string) *Manifest {
	return &Manifest{
		Version:  version,
		Models:   make(map[string]ModelEntry),
		Scalers:  make(map[string]string),
		Encoders: make(map[string]string),
	}
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(r io.Reader) (*Manifest, error) {
	m := NewManifest("")
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		if err == io.EOF {
			return nil, errors.New(errors.ErrCodeArtifactLoad, "manifest is empty")
		}
		return nil, errors.Wrap(err, errors.ErrCodeArtifactLoad, "failed to parse manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadManifest opens name in store and parses it.
func LoadManifest(ctx context.Context, store ArtifactStore, name string) (*Manifest, error) {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return nil, errors.ArtifactLoad(err, "manifest", name)
	}
	defer rc.Close()
	return ParseManifest(rc)
}

// Encode writes the manifest as YAML.
func (m *Manifest) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Close()
}

// Validate checks that every entry names a file and every classifier's
// encoder is listed.
func (m *Manifest) Validate() error {
	var problems []string
	for _, k := range sortedKeys(m.Models) {
		e := m.Models[k]
		if strings.TrimSpace(e.File) == "" {
			problems = append(problems, fmt.Sprintf("model %q has no file", k))
		}
		if e.Encoder != "" {
			if _, ok := m.Encoders[e.Encoder]; !ok {
				problems = append(problems, fmt.Sprintf("model %q references unknown encoder %q", k, e.Encoder))
			}
		}
	}
	for _, k := range sortedKeys(m.Scalers) {
		if strings.TrimSpace(m.Scalers[k]) == "" {
			problems = append(problems, fmt.Sprintf("scaler %q has no file", k))
		}
	}
	for _, k := range sortedKeys(m.Encoders) {
		if strings.TrimSpace(m.Encoders[k]) == "" {
			problems = append(problems, fmt.Sprintf("encoder %q has no file", k))
		}
	}
	if len(problems) > 0 {
		return errors.New(errors.ErrCodeArtifactLoad, "invalid manifest").
			WithDetail(strings.Join(problems, "; "))
	}
	return nil
}

// Require reports every listed key absent from the manifest.
func (m *Manifest) Require(models, scalers, encoders []string) error {
	var missing []string
	for _, k := range models {
		if _, ok := m.Models[k]; !ok {
			missing = append(missing, "model/"+k)
		}
	}
	for _, k := range scalers {
		if _, ok := m.Scalers[k]; !ok {
			missing = append(missing, "scaler/"+k)
		}
	}
	for _, k := range encoders {
		if _, ok := m.Encoders[k]; !ok {
			missing = append(missing, "encoder/"+k)
		}
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrCodeArtifactNotFound, "manifest is missing artifacts").
			WithDetail(strings.Join(missing, ", "))
	}
	return nil
}

// File returns the file registered for kind/key.
func (m *Manifest) File(kind ArtifactKind, key string) (string, bool) {
	switch kind {
	case KindModel:
		e, ok := m.Models[key]
		return e.File, ok
	case KindScaler:
		f, ok := m.Scalers[key]
		return f, ok
	case KindEncoder:
		f, ok := m.Encoders[key]
		return f, ok
	}
	return "", false
}

// EncoderFor returns the encoder key of a classifier model.
func (m *Manifest) EncoderFor(modelKey string) (string, bool) {
	e, ok := m.Models[modelKey]
	if !ok || e.Encoder == "" {
		return "", false
	}
	return e.Encoder, true
}

// Keys lists the keys of kind in sorted order.
func (m *Manifest) Keys(kind ArtifactKind) []string {
	switch kind {
	case KindModel:
		return sortedKeys(m.Models)
	case KindScaler:
		return sortedKeys(m.Scalers)
	case KindEncoder:
		return sortedKeys(m.Encoders)
	}
	return nil
}

// Files lists every distinct file the manifest references.
func (m *Manifest) Files() []string {
	seen := make(map[string]struct{})
	for _, e := range m.Models {
		seen[e.File] = struct{}{}
	}
	for _, f := range m.Scalers {
		seen[f] = struct{}{}
	}
	for _, f := range m.Encoders {
		seen[f] = struct{}{}
	}
	return sortedKeys(seen)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Standard file locations inside an artifact directory.
func ModelFile(key string) string   { return "models/" + key + ".json" }
func ScalerFile(key string) string  { return "scalers/" + key + ".json" }
func EncoderFile(key string) string { return "encoders/" + key + ".json" }

// LayoutManifest builds a manifest using the standard file locations.
// models maps each model key to its encoder key ("" for none).
func LayoutManifest(version string, models map[string]string, scalers, encoders []string) *Manifest {
	m := NewManifest(version)
	for k, enc := range models {
		m.Models[k] = ModelEntry{File: ModelFile(k), Encoder: enc}
	}
	for _, k := range scalers {
		m.Scalers[k] = ScalerFile(k)
	}
	for _, k := range encoders {
		m.Encoders[k] = EncoderFile(k)
	}
	return m
}
