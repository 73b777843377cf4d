// Package main provides the entry point for picoretain-cli.
//
// picoretain-cli reads retained images offline: it prints the region
// layout, checks region headers, decodes session entities, lists the image
// history of a badger data dir and runs in-process sleep and wake cycles.
//
// Usage:
//
//	picoretain-cli layout
//	picoretain-cli inspect --data-dir /var/lib/picoretain
//	picoretain-cli -o yaml export --image retained.bin
//	picoretain-cli simulate --bootstrap session.yaml --write retained.bin
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/picoretain/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
