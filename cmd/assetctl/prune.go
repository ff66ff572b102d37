package main

import (
	"context"

	"github.com/l1jgo/assetcore/internal/catalog"
)

type catalogStore interface {
	catalog.Source
	Delete(ctx context.Context, key string) (bool, error)
}

// pruneMissing deletes stored entries whose key is absent from keep.
func pruneMissing(ctx context.Context, store catalogStore, keep []catalog.Entry) (int, error) {
	want := make(map[string]bool, len(keep))
	for _, e := range keep {
		want[e.Key] = true
	}
	stored, err := store.Entries(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range stored {
		if want[e.Key] {
			continue
		}
		ok, err := store.Delete(ctx, e.Key)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}
