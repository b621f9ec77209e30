// Package main is the fiducial command itself.
package main

import (
	"log"
	"os"

	fidcli "go.viam.com/fiducial/cli"
)

func main() {
	app := fidcli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
