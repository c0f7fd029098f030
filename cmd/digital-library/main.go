// Package main is the command line entry point for the library reader.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/austinmjames/digital-library-core-sub002/internal/config"
)

var version = "dev"

// CLI defines the command-line interface using Kong
var CLI struct {
	Config string `name:"config" short:"c" help:"Config file (YAML)" type:"path"`

	Read    ReadCmd    `cmd:"" default:"withargs" help:"Open the reader"`
	Import  ImportCmd  `cmd:"" help:"Import a JSON corpus into the SQLite store"`
	Ref     RefCmd     `cmd:"" help:"Parse a reference and show its neighbours"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("digital-library"),
		kong.Description("Continuous scrolling reader for sacred texts"),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := ctx.Run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// VersionCmd prints version information
type VersionCmd struct{}

func (v *VersionCmd) Run() error {
	fmt.Printf("digital-library %s\n", version)
	return nil
}
