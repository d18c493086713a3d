package config

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/govend/pkg/dependency"
	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/vcs"
)

var commitRE = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

// Dependency is one entry of a [[build]] or [[test]] list.
type Dependency struct {
	Path    string                 `toml:"path" yaml:"path"`
	VCS     string                 `toml:"vcs" yaml:"vcs"`
	URL     string                 `toml:"url" yaml:"url"`
	Dir     string                 `toml:"dir" yaml:"dir"`
	Commit  string                 `toml:"commit" yaml:"commit"`
	Tag     string                 `toml:"tag" yaml:"tag"`
	Branch  string                 `toml:"branch" yaml:"branch"`
	Exclude []dependency.Exclusion `toml:"exclude" yaml:"exclude"`

	// invalid holds the raw entry when it could not be understood.
	invalid string
}

// ParseDependency parses the short form "path" or "path@ref". A ref that
// looks like a hex commit id pins a commit, anything else a tag.
func ParseDependency(s string) Dependency {
	s = strings.TrimSpace(s)
	p, ref, pinned := strings.Cut(s, "@")
	d := Dependency{Path: p}
	switch {
	case pinned && ref == "":
		d.invalid = s
	case commitRE.MatchString(ref):
		d.Commit = ref
	default:
		d.Tag = ref
	}
	return d
}

// Notation converts the entry to a first-level notation. Entries that
// cannot be interpreted become unrecognized notations, which fail
// resolution with a precise error.
func (d Dependency) Notation() dependency.Notation {
	if d.invalid != "" || d.check() != nil {
		name := d.Path
		if name == "" {
			name = d.invalid
		}
		return &dependency.UnrecognizedNotation{Path: name, FirstLevel: true}
	}
	ref := vcs.Ref{Commit: d.Commit, Tag: d.Tag, Branch: d.Branch}
	if d.VCS == "" && d.URL == "" && d.Dir == "" {
		return &dependency.PackageNotation{Path: d.Path, Ref: ref, FirstLevel: true, Exclude: d.Exclude}
	}
	t, _ := vcs.ParseType(d.VCS)
	if d.VCS == "" && d.URL == "" {
		t = vcs.Local
	}
	return &dependency.MapNotation{
		Path:       d.Path,
		VCS:        t,
		URL:        d.URL,
		Dir:        d.Dir,
		Ref:        ref,
		FirstLevel: true,
		Exclude:    d.Exclude,
	}
}

func (d Dependency) check() error {
	if err := errors.ValidateImportPath(d.Path); err != nil {
		return err
	}
	if _, err := vcs.ParseType(d.VCS); err != nil {
		return err
	}
	n := 0
	for _, s := range []string{d.Commit, d.Tag, d.Branch} {
		if s != "" {
			n++
		}
	}
	if n > 1 {
		return errors.New(errors.ErrCodeConfig, "%s: at most one of commit, tag and branch", d.Path)
	}
	return nil
}

// UnmarshalTOML accepts a string or a table.
func (d *Dependency) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		*d = ParseDependency(v)
		return nil
	case map[string]any:
		*d = Dependency{}
		var bad []string
		str := func(key string, dst *string) {
			raw, ok := v[key]
			if !ok {
				return
			}
			if s, ok := raw.(string); ok {
				*dst = s
				return
			}
			bad = append(bad, key)
		}
		str("path", &d.Path)
		str("vcs", &d.VCS)
		str("url", &d.URL)
		str("dir", &d.Dir)
		str("commit", &d.Commit)
		str("tag", &d.Tag)
		str("branch", &d.Branch)
		if raw, ok := v["exclude"]; ok {
			ex, err := exclusionsOf(raw)
			if err != nil {
				return err
			}
			d.Exclude = ex
		}
		if len(bad) > 0 {
			d.invalid = fmt.Sprintf("%v", v)
		}
		return nil
	default:
		d.invalid = fmt.Sprintf("%v", v)
		return nil
	}
}

func exclusionsOf(raw any) ([]dependency.Exclusion, error) {
	items, ok := raw.([]any)
	if !ok {
		// Arrays of tables decode as []map[string]any.
		if maps, ok := raw.([]map[string]any); ok {
			for _, m := range maps {
				items = append(items, m)
			}
		} else {
			return nil, errors.New(errors.ErrCodeConfig, "exclude must be a list")
		}
	}
	out := make([]dependency.Exclusion, 0, len(items))
	for _, item := range items {
		switch item := item.(type) {
		case string:
			out = append(out, dependency.Exclusion{Name: item})
		case map[string]any:
			name, _ := item["name"].(string)
			url, _ := item["url"].(string)
			out = append(out, dependency.Exclusion{Name: name, URL: url})
		default:
			return nil, errors.New(errors.ErrCodeConfig, "invalid exclusion %v", item)
		}
	}
	return out, nil
}

// dependencyFields mirrors Dependency without its unmarshaler.
type dependencyFields struct {
	Path    string      `yaml:"path"`
	VCS     string      `yaml:"vcs"`
	URL     string      `yaml:"url"`
	Dir     string      `yaml:"dir"`
	Commit  string      `yaml:"commit"`
	Tag     string      `yaml:"tag"`
	Branch  string      `yaml:"branch"`
	Exclude []yaml.Node `yaml:"exclude"`
}

// UnmarshalYAML accepts a scalar or a mapping.
func (d *Dependency) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*d = ParseDependency(n.Value)
		return nil
	case yaml.MappingNode:
		var f dependencyFields
		if err := n.Decode(&f); err != nil {
			*d = Dependency{invalid: fmt.Sprintf("line %d", n.Line)}
			return nil
		}
		*d = Dependency{
			Path:   f.Path,
			VCS:    f.VCS,
			URL:    f.URL,
			Dir:    f.Dir,
			Commit: f.Commit,
			Tag:    f.Tag,
			Branch: f.Branch,
		}
		for _, en := range f.Exclude {
			if en.Kind == yaml.ScalarNode {
				d.Exclude = append(d.Exclude, dependency.Exclusion{Name: en.Value})
				continue
			}
			var e dependency.Exclusion
			if err := en.Decode(&e); err != nil {
				return errors.Wrap(errors.ErrCodeConfig, err, "invalid exclusion at line %d", en.Line)
			}
			d.Exclude = append(d.Exclude, e)
		}
		return nil
	default:
		*d = Dependency{invalid: fmt.Sprintf("line %d", n.Line)}
		return nil
	}
}
