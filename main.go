// The main package for the toolradar executable.
package main

import (
	"github.com/toolradar/toolradar/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
