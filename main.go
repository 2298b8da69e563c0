package main

import (
	"context"
	"os"

	"github.com/GrainArc/SectorMap/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
