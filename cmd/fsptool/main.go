package main

import (
	"os"

	"github.com/nhdewitt/fsptool/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.DefaultEnv(), os.Args[1:], os.Stdout, os.Stderr))
}
