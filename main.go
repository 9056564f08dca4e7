// The main package for the sitedigger executable.
package main

import (
	"github.com/JakeFAU/sitedigger/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
