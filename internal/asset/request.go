package asset

import (
	"errors"

	"github.com/l1jgo/assetcore/internal/catalog"
)

var (
	// ErrNotFound is the uniform failure of Resolve: unknown key, missing
	// component, or any load error.
	ErrNotFound       = errors.New("asset not found")
	ErrSpriteNotFound = errors.New("sprite not found in atlas")
)

type RequestKind int

const (
	KindPlain RequestKind = iota
	KindComponent
)

// Request says what shape the caller expects back from Resolve.
type Request struct {
	Kind      RequestKind
	Component string // component kind, for KindComponent
}

// Plain requests the asset itself.
func Plain() Request { return Request{Kind: KindPlain} }

// Component requests a component of the given kind from a prefab.
func Component(kind string) Request { return Request{Kind: KindComponent, Component: kind} }

func (r Request) String() string {
	if r.Kind == KindComponent {
		return "component:" + r.Component
	}
	return "plain"
}

// designKind is the catalog kind a design-time search filters on.
func (r Request) designKind() string {
	if r.Kind == KindComponent {
		return catalog.KindPrefab
	}
	return ""
}

// Handle is a resolved asset. Component is set for component requests.
type Handle struct {
	Key       string
	Asset     *catalog.Asset
	Component *catalog.Component
}

// TemplateKey lets a handle act as a pool template.
func (h *Handle) TemplateKey() string { return h.Asset.Key }

func (h *Handle) extract(req Request) (*Handle, bool) {
	if req.Kind != KindComponent {
		return h, true
	}
	comp, ok := h.Asset.Component(req.Component)
	if !ok {
		return nil, false
	}
	return &Handle{Key: h.Key, Asset: h.Asset, Component: comp}, true
}
