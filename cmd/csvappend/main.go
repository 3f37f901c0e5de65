// Command csvappend previews, validates and appends delimited files to
// warehouse tables from the command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
