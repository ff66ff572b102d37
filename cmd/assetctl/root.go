package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/l1jgo/assetcore/internal/catalog"
	"github.com/l1jgo/assetcore/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfig = "config/assetcore.toml"

// Exit codes.
const (
	exitFailure      = 1 // verification failed, name not found
	exitCommandError = 2 // bad flags, unreadable files, db errors
)

var validFormats = []string{"text", "json"}

// exitError carries a process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func failure(format string, args ...any) error {
	return &exitError{code: exitFailure, err: fmt.Errorf(format, args...)}
}

func commandError(err error) error {
	return &exitError{code: exitCommandError, err: err}
}

func exitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return exitFailure
}

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	Manifest   string // overrides catalog.manifest
	Format     string
	Verbose    bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "assetctl",
		Short:         "Maintain the assetcore catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return commandError(fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats))
			}
			cfg, err := loadConfig(opts.ConfigPath, cmd.Flags().Changed("config"))
			if err != nil {
				return commandError(err)
			}
			if opts.Manifest != "" {
				cfg.Catalog.Manifest = opts.Manifest
			}
			opts.cfg = cfg
			opts.log = zap.NewNop()
			if opts.Verbose {
				if opts.log, err = zap.NewDevelopment(); err != nil {
					return commandError(err)
				}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfig, "config file")
	cmd.PersistentFlags().StringVar(&opts.Manifest, "manifest", "", "manifest path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(newIndexCommand(opts))
	cmd.AddCommand(newFindCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newVerifyCommand(opts))

	return cmd
}

// loadConfig reads path. A missing default config falls back to defaults;
// a missing explicit one is an error.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		return config.Defaults(), nil
	}
	return config.Load(path)
}

func (o *rootOptions) manifest() ([]catalog.Entry, error) {
	entries, err := catalog.LoadManifest(o.cfg.Catalog.Manifest)
	if err != nil {
		return nil, commandError(err)
	}
	return entries, nil
}

// emit writes v as JSON, or text via the callback.
func (o *rootOptions) emit(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
