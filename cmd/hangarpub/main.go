// Package main provides the hangarpub command, which publishes plugin
// versions and project pages to a Hangar registry.
package main

import (
	"log"
	"os"

	"github.com/clean-dependency-project/hangarpub/internal/cli"
)

func main() {
	app := cli.NewApp()

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
