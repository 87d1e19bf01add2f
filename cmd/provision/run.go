package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/survon/provision/internal/monitoring"
	"github.com/survon/provision/internal/pipeline"
	"github.com/survon/provision/internal/selfupdate"
)

// runOptions holds the parsed 'run' invocation.
type runOptions struct {
	skips        map[string]bool
	version      string
	modelURL     string
	baseURL      string
	noSelfUpdate bool
	debug        bool
}

// parseRunFlags scans the run arguments tolerantly: flags it does not
// recognize are ignored rather than fatal, so boot hooks written by an
// older provisioner keep working after an upgrade.
func parseRunFlags(args []string) runOptions {
	opts := runOptions{
		skips:   make(map[string]bool),
		version: "master",
		baseURL: defaultBaseURL,
	}

	takeValue := func(i *int, arg, name string) (string, bool) {
		if v, ok := strings.CutPrefix(arg, "--"+name+"="); ok {
			return v, true
		}
		if arg == "--"+name && *i+1 < len(args) {
			*i++
			return args[*i], true
		}
		return "", false
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--skip-"):
			opts.skips[strings.TrimPrefix(arg, "--skip-")] = true
		case arg == "--debug":
			opts.debug = true
		case arg == "--no-self-update":
			opts.noSelfUpdate = true
		default:
			if v, ok := takeValue(&i, arg, "version"); ok {
				opts.version = v
			} else if v, ok := takeValue(&i, arg, "model-url"); ok {
				opts.modelURL = v
			} else if v, ok := takeValue(&i, arg, "base-url"); ok {
				opts.baseURL = strings.TrimRight(v, "/")
			} else {
				monitoring.Debugf("run: ignoring unrecognized argument %q", arg)
			}
		}
	}
	return opts
}

func handleRun(args []string) {
	opts := parseRunFlags(args)
	monitoring.DebugMode = opts.debug

	layout := NewLayout(defaultHome())
	ctx := context.Background()

	if !opts.noSelfUpdate {
		execPath, err := os.Executable()
		if err != nil {
			monitoring.Debugf("run: cannot resolve own executable: %v", err)
			execPath = ""
		}
		checker := &selfupdate.Checker{
			ExecPath:    execPath,
			InstallPath: layout.SelfInstall,
			RemoteURL:   opts.baseURL + "/provision/provision-linux-arm64",
			In:          os.Stdin,
			Out:         os.Stdout,
		}
		decision, err := checker.Check(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Self-update check failed: %v\n", err)
			os.Exit(1)
		}
		if decision == selfupdate.Replaced {
			restartReplaced(layout.SelfInstall)
		}
	}

	engine := &pipeline.Engine{}
	if err := engine.Run(ctx, buildSteps(opts, layout)); err != nil {
		fmt.Fprintf(os.Stderr, "Provisioning failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n✓ Provisioning completed.")
	fmt.Println("Reboot (or log in on the console) to start Survon,")
	fmt.Printf("or open the menu now: %s menu\n", layout.SelfInstall)
}

// restartReplaced replaces this process with the freshly installed copy,
// preserving the original arguments. Nothing from the old process runs
// afterwards.
func restartReplaced(installPath string) {
	args := append([]string{installPath}, os.Args[1:]...)
	if err := syscall.Exec(installPath, args, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to restart updated provisioner: %v\n", err)
		fmt.Fprintf(os.Stderr, "Run it by hand: %s\n", strings.Join(args, " "))
		os.Exit(1)
	}
}

// runShell runs a shell command, returning its combined output in the
// error on failure so the operator sees what the tool saw.
func runShell(ctx context.Context, command string) error {
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	if err != nil {
		tail := strings.TrimSpace(string(out))
		if len(tail) > 400 {
			tail = "..." + tail[len(tail)-400:]
		}
		return fmt.Errorf("%s: %w\n%s", command, err, tail)
	}
	return nil
}
