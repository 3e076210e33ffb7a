package main

import (
	"os"

	inqctlcmd "github.com/telekom/inquiry-pipeline/pkg/inqctl/cmd"
)

func main() {
	root := inqctlcmd.NewRootCommand(inqctlcmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
