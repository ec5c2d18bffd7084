// Package main provides the entry point for the subtitler command.
package main

import (
	"context"
	"os"

	"github.com/maauso/subtitler/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}
