// ./main.go
package main

import (
	"github.com/pipemedic/pipemedic/cmd"
)

// main is the entry point for the pipemedic CLI.
func main() {
	cmd.Execute()
}
