package main

import (
	"fmt"
	"io"

	"github.com/l1jgo/assetcore/internal/assetdb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIndexCommand(opts *rootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the design-time name index from the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = opts.cfg.Index.Path
			}
			entries, err := opts.manifest()
			if err != nil {
				return err
			}
			idx, err := assetdb.Open(path)
			if err != nil {
				return commandError(err)
			}
			defer idx.Close()
			if err := idx.Rebuild(cmd.Context(), entries); err != nil {
				return commandError(err)
			}
			opts.log.Info("index rebuilt", zap.String("path", path), zap.Int("entries", len(entries)))

			result := struct {
				Path    string `json:"path"`
				Entries int    `json:"entries"`
			}{path, len(entries)}
			return opts.emit(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "✓ indexed %d entries into %s\n", len(entries), path)
			})
		},
	}
	cmd.Flags().StringVar(&path, "out", "", "index path (default from config)")
	return cmd
}
