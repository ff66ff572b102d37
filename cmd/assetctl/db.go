package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/l1jgo/assetcore/internal/persist"
	"github.com/spf13/cobra"
)

func (o *rootOptions) connect(ctx context.Context) (*persist.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	db, err := persist.NewDB(ctx, o.cfg.Database, o.log)
	if err != nil {
		return nil, commandError(err)
	}
	return db, nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply postgres migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			applied, err := persist.RunMigrations(cmd.Context(), db.Pool)
			if err != nil {
				return commandError(err)
			}
			return opts.emit(cmd.OutOrStdout(), map[string]int{"applied": applied}, func(w io.Writer) {
				fmt.Fprintf(w, "✓ %d migrations applied\n", applied)
			})
		},
	}
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert manifest entries into the postgres catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := opts.manifest()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			if _, err := persist.RunMigrations(ctx, db.Pool); err != nil {
				return commandError(err)
			}

			repo := persist.NewAssetRepo(db)
			if err := repo.Upsert(ctx, entries); err != nil {
				return commandError(err)
			}
			pruned := 0
			if prune {
				if pruned, err = pruneMissing(ctx, repo, entries); err != nil {
					return commandError(err)
				}
			}
			total, err := repo.Count(ctx)
			if err != nil {
				return commandError(err)
			}

			result := struct {
				Imported int `json:"imported"`
				Pruned   int `json:"pruned"`
				Total    int `json:"total"`
			}{len(entries), pruned, total}
			return opts.emit(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "✓ imported %d entries (%d pruned, %d total)\n", result.Imported, result.Pruned, result.Total)
			})
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "delete rows whose key is not in the manifest")
	return cmd
}
