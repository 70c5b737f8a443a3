// The main package for the sitescope executable.
package main

import (
	"github.com/JakeFAU/sitescope/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
