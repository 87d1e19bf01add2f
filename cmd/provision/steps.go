package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/survon/provision/internal/blefriend"
	"github.com/survon/provision/internal/envstore"
	"github.com/survon/provision/internal/fetch"
	"github.com/survon/provision/internal/fsutil"
	"github.com/survon/provision/internal/pipeline"
)

// osPackages are the system packages the runtime leans on: audio
// playback, the BLE stack, and TLS roots for artifact downloads.
var osPackages = []string{"alsa-utils", "bluez", "ca-certificates"}

// stepDef declares one registry entry. The registry order is the
// execution order and is fixed at compile time; skip flags only remove
// individual steps from a run.
type stepDef struct {
	name        string
	label       string
	interactive bool
	fatal       bool
	remedy      func(opts runOptions, l Layout) string
	action      func(opts runOptions, l Layout) func(ctx context.Context) error
}

var stepRegistry []stepDef

// The registry is populated in init rather than in the var declaration:
// remedy closures call onlyStepFlags, which reads stepRegistry, and the
// compiler rejects that as an initialization cycle in an initializer
// expression.
func init() {
	stepRegistry = []stepDef{
		{
			name:  "packages",
			label: "Install OS packages",
			remedy: func(opts runOptions, l Layout) string {
				return fmt.Sprintf("sudo apt-get install -y %s", joinSpace(osPackages))
			},
			action: func(opts runOptions, l Layout) func(ctx context.Context) error {
				return func(ctx context.Context) error {
					return runShell(ctx, fmt.Sprintf(
						"sudo apt-get update -qq && sudo apt-get install -y -qq %s", joinSpace(osPackages)))
				}
			},
		},
		{
			name:  "binary",
			label: "Fetch runtime binary",
			fatal: true,
			action: func(opts runOptions, l Layout) func(ctx context.Context) error {
				url := binaryURL(opts)
				return func(ctx context.Context) error {
					return fetch.Download(ctx, nil, url, l.RuntimeBin, 0755)
				}
			},
		},
		{
			name:  "model",
			label: "Fetch model",
			fatal: true,
			action: func(opts runOptions, l Layout) func(ctx context.Context) error {
				url := modelURL(opts)
				return func(ctx context.Context) error {
					return fetch.Download(ctx, nil, url, l.ModelPath, 0644)
				}
			},
		},
		{
			name:  "audio",
			label: "Fetch audio assets",
			remedy: func(opts runOptions, l Layout) string {
				return fmt.Sprintf("curl -fL -o %s/chime.wav %s/audio/chime.wav", l.AudioDir, opts.baseURL)
			},
			action: func(opts runOptions, l Layout) func(ctx context.Context) error {
				return func(ctx context.Context) error {
					if err := fsutil.RecreateDir(l.AudioDir, 0755); err != nil {
						return err
					}
					for _, name := range []string{"chime.wav", "alert.wav"} {
						url := fmt.Sprintf("%s/audio/%s", opts.baseURL, name)
						if err := fetch.Download(ctx, nil, url, l.AudioDir+"/"+name, 0644); err != nil {
							return err
						}
					}
					return nil
				}
			},
		},
		{
			name:        "dongle",
			label:       "Configure BLE dongle",
			interactive: true,
			remedy: func(opts runOptions, l Layout) string {
				return "check the dongle's MODE switch and re-run: provision run " + onlyStepFlags("dongle")
			},
			action: func(opts runOptions, l Layout) func(ctx context.Context) error {
				session := &blefriend.Session{In: os.Stdin, Out: os.Stdout}
				return func(ctx context.Context) error {
					// Ctrl-C while the switch is on CMD must not kill the
					// process outright: cancel the session instead, so its
					// switch-back reminder still reaches the operator.
					ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
					defer stop()
					return session.Configure(ctx)
				}
			},
		},
		{
			name:  "env",
			label: "Persist runtime variables",
			remedy: func(opts runOptions, l Layout) string {
				return "re-run: provision run " + onlyStepFlags("env")
			},
			action: func(opts runOptions, l Layout) func(ctx context.Context) error {
				return func(ctx context.Context) error {
					store := &envstore.Store{Path: l.Profile}
					vars := []envstore.Entry{
						{Key: "SURVON_HOME", Value: l.Home},
						{Key: "SURVON_BIN", Value: l.RuntimeBin},
						{Key: "SURVON_MODEL", Value: l.ModelPath},
						{Key: "SURVON_MODULES", Value: l.ModulesDir},
						{Key: "SURVON_AUDIO", Value: l.AudioDir},
					}
					for _, v := range vars {
						if err := store.Set(v.Key, v.Value); err != nil {
							return fmt.Errorf("failed to persist %s: %w", v.Key, err)
						}
					}
					return nil
				}
			},
		},
		{
			name:  "launcher",
			label: "Fetch menu launcher",
			remedy: func(opts runOptions, l Layout) string {
				return fmt.Sprintf("curl -fL -o %s %s/menu.sh && chmod +x %s", l.Launcher, opts.baseURL, l.Launcher)
			},
			action: func(opts runOptions, l Layout) func(ctx context.Context) error {
				url := opts.baseURL + "/menu.sh"
				return func(ctx context.Context) error {
					return fetch.Download(ctx, nil, url, l.Launcher, 0755)
				}
			},
		},
		{
			name:  "boothook",
			label: "Install boot selector hook",
			remedy: func(opts runOptions, l Layout) string {
				return "re-run: provision run " + onlyStepFlags("boothook")
			},
			action: func(opts runOptions, l Layout) func(ctx context.Context) error {
				return func(ctx context.Context) error {
					return envstore.InstallBootHook(l.Profile, l.SelfInstall+" boot")
				}
			},
		},
	}
}

// buildSteps materializes the registry for one invocation, applying the
// parsed skip flags. Order is the registry's; flags never reorder steps.
func buildSteps(opts runOptions, l Layout) []pipeline.Step {
	steps := make([]pipeline.Step, 0, len(stepRegistry))
	for _, def := range stepRegistry {
		step := pipeline.Step{
			Name:        def.name,
			Label:       def.label,
			Skip:        opts.skips[def.name],
			Interactive: def.interactive,
			Fatal:       def.fatal,
			Action:      def.action(opts, l),
		}
		if def.remedy != nil {
			step.Remedy = def.remedy(opts, l)
		}
		steps = append(steps, step)
	}
	return steps
}

func binaryURL(opts runOptions) string {
	return fmt.Sprintf("%s/releases/%s/survon-linux-arm64", opts.baseURL, opts.version)
}

// modelURL returns the stock model unless the operator supplied a custom
// URL.
func modelURL(opts runOptions) string {
	if opts.modelURL != "" {
		return opts.modelURL
	}
	return opts.baseURL + "/models/phi3-mini-q4.gguf"
}

// onlyStepFlags lists the skip flags that reduce a run to just the named
// step.
func onlyStepFlags(keep string) string {
	var flags []string
	for _, def := range stepRegistry {
		if def.name != keep {
			flags = append(flags, "--skip-"+def.name)
		}
	}
	return strings.Join(flags, " ")
}

func joinSpace(parts []string) string {
	return strings.Join(parts, " ")
}
