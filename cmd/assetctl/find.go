package main

import (
	"fmt"
	"io"
	"os"

	"github.com/l1jgo/assetcore/internal/asset"
	"github.com/l1jgo/assetcore/internal/assetdb"
	"github.com/l1jgo/assetcore/internal/catalog"
	"github.com/spf13/cobra"
)

type findResult struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	Path string `json:"path"`
}

func newFindCommand(opts *rootOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "find <name>",
		Short: "Look up an asset by display name, as design-time Resolve does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, closeIdx, err := opts.index()
			if err != nil {
				return err
			}
			defer closeIdx()

			e, ok, err := idx.FindByName(cmd.Context(), args[0], kind)
			if err != nil {
				return commandError(err)
			}
			if !ok {
				return failure("no asset named %q", args[0])
			}
			res := findResult{Key: e.Key, Name: e.Name, Kind: e.Kind, Path: e.Path}
			return opts.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", res.Key, res.Kind, res.Path)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "restrict to an asset kind")
	return cmd
}

// index opens the SQLite index when it exists, otherwise the manifest.
func (o *rootOptions) index() (asset.Index, func(), error) {
	if p := o.cfg.Index.Path; p != "" {
		if _, err := os.Stat(p); err == nil {
			idx, err := assetdb.Open(p)
			if err != nil {
				return nil, nil, commandError(err)
			}
			return idx, func() { idx.Close() }, nil
		}
	}
	entries, err := o.manifest()
	if err != nil {
		return nil, nil, err
	}
	return catalog.NewManifestIndex(entries), func() {}, nil
}
