package main

import (
	_ "time/tzdata"

	"github.com/JakeFAU/bing-daily-crawler/cmd"
)

func main() {
	cmd.Execute()
}
