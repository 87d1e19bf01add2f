package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/survon/provision/internal/envstore"
	"github.com/survon/provision/internal/fetch"
	"github.com/survon/provision/internal/modules"
)

func handleMenu(args []string) {
	runMenu(os.Stdin, os.Stdout, NewLayout(defaultHome()))
}

// menu is a thin dispatcher: every entry delegates to an action the
// pipeline or boot selector also uses. The action funcs are fields so
// tests can observe dispatch without touching the system.
type menu struct {
	in     *bufio.Reader
	out    io.Writer
	layout Layout

	rerun       func() error
	editVars    func() error
	update      func() error
	launch      func() error
	listModules func() error
}

func runMenu(in io.Reader, out io.Writer, layout Layout) {
	m := newMenu(in, out, layout)
	m.loop()
}

func newMenu(in io.Reader, out io.Writer, layout Layout) *menu {
	m := &menu{
		in:     bufio.NewReader(in),
		out:    out,
		layout: layout,
	}
	m.rerun = m.rerunProvisioner
	m.editVars = m.editVariables
	m.update = m.updateRuntime
	m.launch = m.launchRuntime
	m.listModules = func() error { return modules.List(m.out, layout.ModulesDir) }
	return m
}

// loop shows the menu until the operator quits or hands off to the
// runtime. Invalid selections re-prompt rather than guessing.
func (m *menu) loop() {
	for {
		fmt.Fprint(m.out, `
Survon menu
  1) Re-run provisioner
  2) Edit persisted variables
  3) Update runtime binary
  4) Launch Survon
  5) List modules
  q) Exit to shell
> `)
		line, err := m.in.ReadString('\n')
		if err != nil {
			fmt.Fprintln(m.out, "\nNo input; exiting to shell.")
			return
		}

		var action func() error
		switch strings.TrimSpace(line) {
		case "1":
			action = m.rerun
		case "2":
			action = m.editVars
		case "3":
			action = m.update
		case "4":
			action = m.launch
		case "5":
			action = m.listModules
		case "q", "Q":
			return
		default:
			fmt.Fprintln(m.out, "Invalid selection; choose 1-5 or q.")
			continue
		}

		if err := action(); err != nil {
			fmt.Fprintf(m.out, "  ⚠ %v\n", err)
		}
	}
}

// rerunProvisioner re-enters the pipeline via the saved copy so the
// self-update check runs again too.
func (m *menu) rerunProvisioner() error {
	cmd := exec.Command(m.layout.SelfInstall, "run")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (m *menu) editVariables() error {
	store := &envstore.Store{Path: m.layout.Profile}

	entries, err := store.All()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(m.out, "No persisted variables yet.")
	}
	for _, e := range entries {
		fmt.Fprintf(m.out, "  %s=%q\n", e.Key, e.Value)
	}

	fmt.Fprint(m.out, "Variable name (empty to cancel): ")
	key, err := m.in.ReadString('\n')
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	fmt.Fprint(m.out, "Value: ")
	value, err := m.in.ReadString('\n')
	if err != nil {
		return err
	}

	if err := store.Set(key, strings.TrimSpace(value)); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "  ✓ %s saved\n", key)
	return nil
}

func (m *menu) updateRuntime() error {
	opts := runOptions{version: "master", baseURL: defaultBaseURL}
	fmt.Fprintf(m.out, "Fetching %s...\n", binaryURL(opts))
	if err := fetch.Download(context.Background(), nil, binaryURL(opts), m.layout.RuntimeBin, 0755); err != nil {
		return err
	}
	fmt.Fprintln(m.out, "  ✓ Runtime updated")
	return nil
}

// launchRuntime replaces the menu process with the runtime.
func (m *menu) launchRuntime() error {
	execProcess(m.layout.RuntimeBin)
	return nil
}
