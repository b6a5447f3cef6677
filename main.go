// ./main.go
package main

import (
	"github.com/gleanerhq/gleaner/cmd"
	"github.com/gleanerhq/gleaner/internal/observability"
)

// main is the entry point for the gleaner CLI.
func main() {
	defer observability.Sync()
	cmd.Execute()
}
