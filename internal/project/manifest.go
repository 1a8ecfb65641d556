package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest is the decoded ember.toml for one module.
type Manifest struct {
	// Name is the module name used for the artifact and diagnostics.
	Name string
	// Program is the path to the bound-program input, relative to the
	// manifest directory.
	Program string
	// Output is where the object artifact lands; defaults to
	// <name>.embo next to the manifest.
	Output string
	// Executable modules require an entry point.
	Executable bool
}

var (
	// ErrModuleSectionMissing indicates that [module] is missing.
	ErrModuleSectionMissing = errors.New("missing [module]")
	// ErrProgramMissing indicates that [module].program is missing.
	ErrProgramMissing = errors.New("missing [module].program")
)

type manifestFile struct {
	Module struct {
		Name       string `toml:"name"`
		Program    string `toml:"program"`
		Output     string `toml:"output"`
		Executable bool   `toml:"executable"`
	} `toml:"module"`
}

// LoadManifest parses an ember.toml. Relative paths in the manifest
// are resolved against the manifest's own directory.
func LoadManifest(path string) (Manifest, error) {
	var cfg manifestFile
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("module") {
		return Manifest{}, fmt.Errorf("%s: %w", path, ErrModuleSectionMissing)
	}
	prog := strings.TrimSpace(cfg.Module.Program)
	if !meta.IsDefined("module", "program") || prog == "" {
		return Manifest{}, fmt.Errorf("%s: %w", path, ErrProgramMissing)
	}

	dir := filepath.Dir(path)
	name := strings.TrimSpace(cfg.Module.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(prog), filepath.Ext(prog))
	}
	out := strings.TrimSpace(cfg.Module.Output)
	if out == "" {
		out = name + ".embo"
	}
	return Manifest{
		Name:       name,
		Program:    resolveAgainst(dir, prog),
		Output:     resolveAgainst(dir, out),
		Executable: cfg.Module.Executable,
	}, nil
}

func resolveAgainst(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, filepath.FromSlash(p))
}
