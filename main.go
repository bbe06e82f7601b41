package gest

import (
	"os"
	"path/filepath"

	"gest/internal/cli/commands"
)

// Version is reported by --version.
var Version = "dev"

// Main runs the command line for s and exits the process. Without a
// subcommand every test runs; the exit code is 0 only when all tests pass.
//
//	func main() {
//		s := gest.New()
//		// register tests
//		gest.Main(s)
//	}
func Main(s *Suite) {
	os.Exit(Execute(s, os.Args[1:]))
}

// Execute runs the command line for s with args and returns the exit code.
func Execute(s *Suite, args []string) int {
	name := "gest"
	if len(os.Args) > 0 {
		name = filepath.Base(os.Args[0])
	}
	return commands.Execute(s, name, Version, args)
}
