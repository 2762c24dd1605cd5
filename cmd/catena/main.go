// Command catena is the entry point for the catena content ingestion
// service. It chunks resources into a Resource → Block → Fragment
// hierarchy, embeds them with context blending, and persists the result
// to a Qdrant point store plus local hierarchy stores.
package main

import (
	"fmt"
	"os"

	"github.com/catena-ai/catena-go/cmd/catena/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
