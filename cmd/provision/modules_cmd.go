package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/survon/provision/internal/modules"
)

func handleModules(args []string) {
	fs := flag.NewFlagSet("modules", flag.ExitOnError)
	dir := fs.String("dir", NewLayout(defaultHome()).ModulesDir, "Modules directory to list")
	fs.Parse(args)

	if err := modules.List(os.Stdout, *dir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list modules: %v\n", err)
		os.Exit(1)
	}
}
