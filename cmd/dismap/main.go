// Package main is the entry point for the dismap CLI binary.
package main

import (
	"os"

	"github.com/nmfs-ost/dismap/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
