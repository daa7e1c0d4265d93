// Command btstudio inspects, reformats and refactors behavior tree projects described by a
// *.btproj.yaml manifest.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
