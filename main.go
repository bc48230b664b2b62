package main

import (
	"os"

	"github.com/lexiworks/lexisurvey/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
