// Package manifest reads the dependency declarations of a Go source tree.
//
// Only the parts of go.mod that matter for vendoring are understood: the
// module path and the require directives. Replace and exclude directives
// are ignored; rewrite rules belong in repository configuration.
package manifest

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/matzehuels/govend/pkg/vcs"
)

// Requirement is one require directive.
type Requirement struct {
	Path     string
	Version  string
	Indirect bool
}

// GoMod is the parsed subset of a go.mod file.
type GoMod struct {
	Module  string
	Require []Requirement
}

// Direct returns the requirements not marked indirect.
func (m *GoMod) Direct() []Requirement {
	var out []Requirement
	for _, r := range m.Require {
		if !r.Indirect {
			out = append(out, r)
		}
	}
	return out
}

// ParseGoMod parses go.mod content. Malformed lines are skipped; the first
// occurrence of a module path wins.
func ParseGoMod(data []byte) *GoMod {
	mod := &GoMod{}
	seen := make(map[string]bool)
	inRequire := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		if strings.HasPrefix(line, "module ") {
			mod.Module = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "module ")), `"`)
			continue
		}

		if strings.HasPrefix(line, "require (") || line == "require(" {
			inRequire = true
			continue
		}
		if inRequire && line == ")" {
			inRequire = false
			continue
		}

		if strings.HasPrefix(line, "require ") && !strings.Contains(line, "(") {
			line = strings.TrimPrefix(line, "require ")
		} else if !inRequire {
			continue
		}

		if req, ok := parseRequireLine(line); ok && !seen[req.Path] {
			seen[req.Path] = true
			mod.Require = append(mod.Require, req)
		}
	}
	return mod
}

func parseRequireLine(line string) (Requirement, bool) {
	var req Requirement
	if idx := strings.Index(line, "//"); idx != -1 {
		req.Indirect = strings.Contains(line[idx:], "indirect")
		line = line[:idx]
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Requirement{}, false
	}
	req.Path = strings.Trim(fields[0], `"`)
	req.Version = fields[1]
	return req, true
}

// pseudoVersion matches the trailing timestamp and commit of a Go
// pseudo-version such as v0.0.0-20230804202142-fc85eb664529.
var pseudoVersion = regexp.MustCompile(`(?:^|[-.])\d{14}-([0-9a-f]{12})$`)

// RefFromVersion turns a module version into the ref a VCS provider
// understands. Pseudo-versions name a commit; anything else is a tag.
func RefFromVersion(version string) vcs.Ref {
	version = strings.TrimSuffix(version, "+incompatible")
	if version == "" {
		return vcs.Ref{}
	}
	if m := pseudoVersion.FindStringSubmatch(version); m != nil {
		return vcs.Ref{Commit: m[1]}
	}
	return vcs.Ref{Tag: version}
}
