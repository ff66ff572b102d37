package event

import "github.com/l1jgo/assetcore/internal/pool"

// AssetMissing is emitted when a Resolve ends in not-found.
type AssetMissing struct {
	Key     string
	Request string
	Reason  string
}

type EffectShown struct {
	Name string
	ID   pool.ID
}

type EffectHidden struct {
	Name    string
	ID      pool.ID
	Expired bool // hidden by the lifetime sweep rather than by a caller
}
