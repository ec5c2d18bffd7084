// Package preflight checks that the external tools a run depends on are
// installed and builds install hints for the ones that are missing.
package preflight

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Hint carries install instructions for one operating system.
type Hint struct {
	// OS is the GOOS value the hint was built for.
	OS string
	// Lines are human readable instructions, one command or sentence each.
	Lines []string
}

// String renders the hint one line per instruction.
func (h Hint) String() string {
	return strings.Join(h.Lines, "\n")
}

// Capability reports whether an external tool is available.
type Capability struct {
	Name    string
	Command string
	Present bool
	// Path is the resolved executable when Present is true.
	Path string
	// Hint is set when Present is false.
	Hint Hint
}

// packages maps a tool name to its package name per package manager.
// An empty entry means the manager does not ship the tool.
var packages = map[string]map[string]string{
	"ffmpeg": {
		"brew":  "ffmpeg",
		"choco": "ffmpeg",
		"scoop": "ffmpeg",
		"apt":   "ffmpeg",
	},
	"whisper.cpp": {
		"brew": "whisper-cpp",
	},
}

// Prober resolves commands against PATH.
type Prober struct {
	lookPath func(string) (string, error)
	goos     string
}

// NewProber builds a prober for the running OS.
func NewProber() *Prober {
	return &Prober{lookPath: exec.LookPath, goos: runtime.GOOS}
}

// OS returns the operating system hints are built for.
func (p *Prober) OS() string {
	return p.goos
}

// Probe checks whether command resolves to an executable. name selects the
// install hint.
func (p *Prober) Probe(name, command string) Capability {
	capability := Capability{Name: name, Command: strings.TrimSpace(command)}
	if capability.Command == "" {
		capability.Hint = p.hint(name)
		return capability
	}

	path, err := p.lookPath(capability.Command)
	if err != nil {
		capability.Hint = p.hint(name)
		return capability
	}

	capability.Present = true
	capability.Path = path
	return capability
}

// hint builds install instructions for name on the prober's OS.
func (p *Prober) hint(name string) Hint {
	pkgs := packages[name]
	var lines []string

	switch p.goos {
	case "darwin":
		if pkg := pkgs["brew"]; pkg != "" {
			lines = append(lines, "Brew install command:", "brew install "+pkg)
		}
	case "windows":
		if pkg := pkgs["choco"]; pkg != "" {
			lines = append(lines, "Chocolatey install command:", "choco install "+pkg)
		}
		if pkg := pkgs["scoop"]; pkg != "" {
			lines = append(lines, "Scoop install command:", "scoop install "+pkg)
		}
	case "linux":
		if pkg := pkgs["apt"]; pkg != "" {
			lines = append(lines, "APT install command:", "sudo apt install "+pkg)
		}
	}

	if len(lines) == 0 {
		lines = []string{fmt.Sprintf("Please install %s for your operating system and make sure it is on PATH.", name)}
	}
	return Hint{OS: p.goos, Lines: lines}
}
