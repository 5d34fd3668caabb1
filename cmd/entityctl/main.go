// Command entityctl builds, inspects and queries entity index snapshots from
// the command line.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/cmd/entityctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
