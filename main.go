package main

import (
	"os"

	"github.com/conneroisu/sitepress/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
