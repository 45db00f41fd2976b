// This program manages a local ledger that records the provenance of files.
package main

import (
	"github.com/ardanlabs/filechain/app/filechain/cli/cmd"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	cmd.Execute(build)
}
