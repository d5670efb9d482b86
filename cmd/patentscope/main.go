// Command patentscope turns natural-language patent search requests into BigQuery queries,
// builds a similarity index over the results and serves both through a CLI and an HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
