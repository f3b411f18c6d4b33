// The main package for the progtree executable.
package main

import (
	"github.com/JakeFAU/progress-tree/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
