// Package main provides the reference scoring process. It reads one JSON
// array of scoring inputs from stdin and writes the predictions to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/moca-trajectory-engine/pkg/scorer"
)

func main() {
	if err := scorer.ServeReference(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "moca-scorer: %v\n", err)
		os.Exit(1)
	}
}
