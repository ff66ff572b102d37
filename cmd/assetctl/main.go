// Command assetctl maintains the asset catalog: it builds the design-time
// index, migrates and imports into postgres, and verifies payloads.
package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
