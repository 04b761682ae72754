package main

import (
	"fmt"
	"os"

	"github.com/studylog/core/cmd/studylog/commands"
)

// @title studylog API
// @version 1.0
// @description Study time logging over flat-file JSON databases
// @BasePath /

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
