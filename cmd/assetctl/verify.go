package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/l1jgo/assetcore/internal/catalog"
	"github.com/spf13/cobra"
)

type verifyProblem struct {
	Key    string `json:"key"`
	Path   string `json:"path"`
	Reason string `json:"reason"` // "missing", "checksum" or "unreadable"
	Detail string `json:"detail"`
}

type verifyReport struct {
	Checked  int             `json:"checked"`
	Problems []verifyProblem `json:"problems,omitempty"`
	Unsigned []string        `json:"unsigned,omitempty"` // entries with no checksum
}

func newVerifyCommand(opts *rootOptions) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that every manifest payload exists and matches its checksum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if root == "" {
				root = opts.cfg.Catalog.ContentRoot
			}
			entries, err := opts.manifest()
			if err != nil {
				return err
			}
			report := verify(os.DirFS(root), entries)
			if err := opts.emit(cmd.OutOrStdout(), report, func(w io.Writer) { report.print(w) }); err != nil {
				return err
			}
			if len(report.Problems) > 0 {
				return failure("%d of %d assets failed verification", len(report.Problems), report.Checked)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "content root (default from config)")
	return cmd
}

func verify(root fs.FS, entries []catalog.Entry) verifyReport {
	r := verifyReport{Checked: len(entries)}
	for _, e := range entries {
		if e.Checksum == "" {
			r.Unsigned = append(r.Unsigned, e.Key)
		}
		_, err := catalog.ReadAsset(root, e)
		if err == nil {
			continue
		}
		p := verifyProblem{Key: e.Key, Path: e.Path, Detail: err.Error()}
		switch {
		case errors.Is(err, catalog.ErrChecksum):
			p.Reason = "checksum"
		case errors.Is(err, os.ErrNotExist):
			p.Reason = "missing"
		default:
			p.Reason = "unreadable"
		}
		r.Problems = append(r.Problems, p)
	}
	return r
}

func (r verifyReport) print(w io.Writer) {
	for _, p := range r.Problems {
		fmt.Fprintf(w, "✗ %s (%s): %s\n", p.Key, p.Reason, p.Detail)
	}
	for _, k := range r.Unsigned {
		fmt.Fprintf(w, "? %s has no checksum\n", k)
	}
	if len(r.Problems) == 0 {
		fmt.Fprintf(w, "✓ %d assets verified\n", r.Checked)
	}
}
