// colortrack - dominant colour extraction with history and favourites
//
// colortrack ranks the dominant colours of a photo into swatches, keeps a
// history of every extraction and a set of favourite colours.
//
// Copyright (c) 2025 John Mylchreest
// Licensed under the MIT License
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/jmylchreest/colortrack/internal/cli"
	"github.com/jmylchreest/colortrack/internal/version"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		cli.NewRootCmd(),
		fang.WithVersion(version.Short()),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
