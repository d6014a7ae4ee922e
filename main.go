// The main package for the bingcrawler executable.
package main

import (
	// Embedded zone data so schedule.timezone resolves in minimal images.
	_ "time/tzdata"

	"github.com/JakeFAU/bing-daily-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
