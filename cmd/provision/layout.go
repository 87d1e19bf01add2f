package main

import (
	"os"
	"path/filepath"
)

// defaultBaseURL is the artifact server that hosts the provisioner
// binary, runtime releases, models, and audio assets.
const defaultBaseURL = "https://get.survon.io"

// Layout fixes the filesystem contract shared between the pipeline's
// final steps and the boot selector. Everything lives under the survon
// user's home so the provisioner needs no privileges beyond the package
// step.
type Layout struct {
	Home        string
	BinDir      string
	RuntimeBin  string
	SelfInstall string
	ModelDir    string
	ModelPath   string
	AudioDir    string
	ModulesDir  string
	Launcher    string
	Profile     string
}

// NewLayout derives all well-known paths from the home directory.
func NewLayout(home string) Layout {
	bin := filepath.Join(home, "bin")
	models := filepath.Join(home, "models")
	return Layout{
		Home:        home,
		BinDir:      bin,
		RuntimeBin:  filepath.Join(bin, "survon"),
		SelfInstall: filepath.Join(bin, "provision"),
		ModelDir:    models,
		ModelPath:   filepath.Join(models, "model.gguf"),
		AudioDir:    filepath.Join(home, "audio"),
		ModulesDir:  filepath.Join(home, "modules"),
		Launcher:    filepath.Join(bin, "menu.sh"),
		Profile:     filepath.Join(home, ".bashrc"),
	}
}

// defaultHome honours SURVON_HOME so bench setups and tests can relocate
// the whole tree.
func defaultHome() string {
	if h := os.Getenv("SURVON_HOME"); h != "" {
		return h
	}
	return "/home/survon"
}
