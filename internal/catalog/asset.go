package catalog

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Asset kinds. Prefabs are composites that carry components; atlases carry
// named sprites.
const (
	KindPrefab  = "prefab"
	KindTexture = "texture"
	KindAtlas   = "atlas"
	KindAudio   = "audio"
	KindData    = "data"
)

// Entry is one catalog record: where an asset's payload lives and what it is.
type Entry struct {
	Key        string        `yaml:"key"`
	Name       string        `yaml:"name"` // display name, used by design-time lookup
	Kind       string        `yaml:"kind"`
	Path       string        `yaml:"path"`               // relative to the content root
	Checksum   string        `yaml:"checksum,omitempty"` // hex BLAKE2b-256 of the payload
	Components []string      `yaml:"components,omitempty"`
	Sprites    []SpriteEntry `yaml:"sprites,omitempty"`
	Lifetime   time.Duration `yaml:"lifetime,omitempty"` // effects only; 0 = until hidden
}

// SpriteEntry is a rectangle inside an atlas.
type SpriteEntry struct {
	Name string `yaml:"name" json:"name"`
	X    int    `yaml:"x" json:"x"`
	Y    int    `yaml:"y" json:"y"`
	W    int    `yaml:"w" json:"w"`
	H    int    `yaml:"h" json:"h"`
}

// Asset is a loaded entry plus its payload bytes.
type Asset struct {
	Entry
	Payload []byte
}

// Component is a piece of a prefab, addressed by kind.
type Component struct {
	Kind  string
	Owner *Asset
}

// Sprite is a named region of an atlas asset.
type Sprite struct {
	SpriteEntry
	Atlas *Asset
}

// Component returns the component of the given kind, if the asset is a
// prefab carrying it.
func (a *Asset) Component(kind string) (*Component, bool) {
	if a.Kind != KindPrefab || !slices.Contains(a.Components, kind) {
		return nil, false
	}
	return &Component{Kind: kind, Owner: a}, true
}

func (a *Asset) Sprite(name string) (*Sprite, bool) {
	if a.Kind != KindAtlas {
		return nil, false
	}
	for _, s := range a.Sprites {
		if s.Name == name {
			return &Sprite{SpriteEntry: s, Atlas: a}, true
		}
	}
	return nil, false
}

// Clone deep-copies the asset so the copy can be mutated independently.
func (a *Asset) Clone() *Asset {
	c := &Asset{Entry: a.Entry}
	c.Payload = bytes.Clone(a.Payload)
	c.Components = slices.Clone(a.Components)
	c.Sprites = slices.Clone(a.Sprites)
	return c
}

// Checksum returns the hex BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ReadAsset reads the payload for e from root and verifies its checksum.
func ReadAsset(root fs.FS, e Entry) (*Asset, error) {
	payload, err := fs.ReadFile(root, e.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}
	if e.Checksum != "" {
		if got := Checksum(payload); got != e.Checksum {
			return nil, fmt.Errorf("%w: %s has %s, want %s", ErrChecksum, e.Path, got, e.Checksum)
		}
	}
	return &Asset{Entry: e, Payload: payload}, nil
}
