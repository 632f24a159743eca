// The main package for the monitor-noticias executable.
package main

import (
	// Embedded zoneinfo keeps America/Sao_Paulo available on hosts without tzdata.
	_ "time/tzdata"

	"github.com/JakeFAU/monitor-noticias/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
