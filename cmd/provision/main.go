// Command provision sets up a Survon appliance from a bare OS image and
// drives its boot-time behaviour afterwards.
package main

import (
	"fmt"
	"os"

	"github.com/survon/provision/internal/version"
)

func main() {
	args := os.Args[1:]

	command := "run"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "run":
		handleRun(args)
	case "boot":
		handleBoot(args)
	case "menu":
		handleMenu(args)
	case "modules":
		handleModules(args)
	case "version":
		fmt.Printf("provision version %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`provision - Survon appliance provisioner

Usage: provision <command> [options]

Commands:
  run        Provision the appliance (default command)
  boot       Run the boot selector (installed at console login)
  menu       Open the interactive menu
  modules    List installed plugin modules
  version    Show provisioner version
  help       Show this help message

Run Flags:
  --version <ref>      Runtime release to fetch (default: master)
  --model-url <url>    Custom model URL instead of the stock model
  --base-url <url>     Artifact server base URL
  --skip-<step>        Skip one pipeline step; steps in order:
                       packages, binary, model, audio, dongle,
                       env, launcher, boothook
  --no-self-update     Skip the pre-run self-update check
  --debug              Enable debug logging

Unrecognized flags to 'run' are ignored so that older boot hooks and
launcher scripts keep working across provisioner upgrades.

Examples:
  # Full provisioning run
  provision run

  # Re-run only the dongle configuration
  provision run --skip-packages --skip-binary --skip-model \
      --skip-audio --skip-env --skip-launcher --skip-boothook

  # Provision with a custom model
  provision run --model-url https://example.org/models/custom.gguf`)
}
