package catalog

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

type manifestFile struct {
	Assets []Entry `yaml:"assets"`
}

// ManifestSource reads catalog entries from a YAML manifest on every
// Entries call, so a failed bootstrap can be retried after fixing the file.
type ManifestSource struct {
	Path string
}

func (s ManifestSource) Entries(_ context.Context) ([]Entry, error) {
	return LoadManifest(s.Path)
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	entries, err := ParseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return entries, nil
}

func ParseManifest(raw []byte) ([]Entry, error) {
	var f manifestFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	for i := range f.Assets {
		if f.Assets[i].Name == "" {
			f.Assets[i].Name = f.Assets[i].Key
		}
	}
	return f.Assets, nil
}

// StaticSource serves a fixed entry list.
type StaticSource []Entry

func (s StaticSource) Entries(_ context.Context) ([]Entry, error) {
	out := make([]Entry, len(s))
	copy(out, s)
	return out, nil
}

// NormalizeName folds a display name to NFC so composed and decomposed
// spellings compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// ManifestIndex is an in-memory design-time index over a manifest, searched
// in manifest order.
type ManifestIndex struct {
	entries []Entry
	names   []string
}

func NewManifestIndex(entries []Entry) *ManifestIndex {
	idx := &ManifestIndex{
		entries: entries,
		names:   make([]string, len(entries)),
	}
	for i, e := range entries {
		idx.names[i] = NormalizeName(e.Name)
	}
	return idx
}

// FindByName returns the first entry whose display name equals name and,
// when kind is non-empty, whose kind matches.
func (x *ManifestIndex) FindByName(_ context.Context, name, kind string) (Entry, bool, error) {
	want := NormalizeName(name)
	for i, e := range x.entries {
		if x.names[i] == want && (kind == "" || e.Kind == kind) {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}
