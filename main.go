package main

import (
	_ "time/tzdata"

	"github.com/teemow/freebusy/cmd"
)

// version will be set by goreleaser during build
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
