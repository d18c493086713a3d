// Package repository holds the configured rules that map import path
// prefixes to source repositories.
//
// A [Pattern] either produces an origin for the root it matched (a URL
// template for version-controlled sources, a directory template for local
// ones) or is marked incomplete: the prefix is known to be governed by the
// rule, but the rest must come from elsewhere. Patterns are registered on a
// [Handler] once at startup; lookups never mutate it, so one Handler can be
// shared by concurrent resolvers.
package repository

import (
	"path"
	"regexp"
	"strings"

	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/vcs"
)

// Pattern is a single repository rule.
//
// Match is one of:
//   - an exact import path ("github.com/a/b")
//   - a glob where '*' stays within one segment ("example.com/*/*")
//   - a regular expression prefixed with '~' ("~corp\\.io/.+"), anchored at
//     both ends
//
// URL and Dir may reference {root}, the matched path, and {name}, its last
// segment.
type Pattern struct {
	Match      string   `toml:"match" yaml:"match" json:"match"`
	VCS        vcs.Type `toml:"vcs" yaml:"vcs" json:"vcs,omitempty"`
	URL        string   `toml:"url" yaml:"url" json:"url,omitempty"`
	Dir        string   `toml:"dir" yaml:"dir" json:"dir,omitempty"`
	Incomplete bool     `toml:"incomplete" yaml:"incomplete" json:"incomplete,omitempty"`

	re *regexp.Regexp
}

// compile validates the pattern and prepares its matcher.
func (p *Pattern) compile() error {
	if strings.TrimSpace(p.Match) == "" {
		return errors.New(errors.ErrCodeConfig, "repository pattern has empty match")
	}
	if _, err := vcs.ParseType(string(p.VCS)); err != nil {
		return errors.Wrap(errors.ErrCodeConfig, err, "repository pattern %q", p.Match)
	}

	if expr, ok := strings.CutPrefix(p.Match, "~"); ok {
		re, err := regexp.Compile("^(?:" + expr + ")$")
		if err != nil {
			return errors.Wrap(errors.ErrCodeConfig, err, "repository pattern %q", p.Match)
		}
		p.re = re
		return nil
	}
	if isGlob(p.Match) {
		if _, err := path.Match(p.Match, ""); err != nil {
			return errors.Wrap(errors.ErrCodeConfig, err, "repository pattern %q", p.Match)
		}
	}
	return nil
}

// Matches reports whether importPath is governed by the pattern.
func (p *Pattern) Matches(importPath string) bool {
	switch {
	case p.re != nil:
		return p.re.MatchString(importPath)
	case isGlob(p.Match):
		ok, _ := path.Match(p.Match, importPath)
		return ok
	default:
		return p.Match == importPath
	}
}

// Expand fills the URL and Dir templates for root. Either result may be
// empty.
func (p *Pattern) Expand(root string) (url, dir string) {
	r := strings.NewReplacer("{root}", root, "{name}", path.Base(root))
	if p.URL != "" {
		url = r.Replace(p.URL)
	}
	if p.Dir != "" {
		dir = r.Replace(p.Dir)
	}
	return url, dir
}

// Type returns the configured VCS, defaulting to git.
func (p *Pattern) Type() vcs.Type {
	t, err := vcs.ParseType(string(p.VCS))
	if err != nil {
		return vcs.Git
	}
	return t
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// Handler is an ordered set of patterns.
type Handler struct {
	patterns []*Pattern
}

// NewHandler returns a handler with the given patterns registered in order.
func NewHandler(patterns ...Pattern) (*Handler, error) {
	h := &Handler{}
	for _, p := range patterns {
		if err := h.Register(p); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Register appends p. Must not be called once resolution has started.
func (h *Handler) Register(p Pattern) error {
	if err := p.compile(); err != nil {
		return err
	}
	h.patterns = append(h.patterns, &p)
	return nil
}

// FindMatched returns the first registered pattern matching importPath.
func (h *Handler) FindMatched(importPath string) (*Pattern, bool) {
	for _, p := range h.patterns {
		if p.Matches(importPath) {
			return p, true
		}
	}
	return nil, false
}

// Len returns the number of registered patterns.
func (h *Handler) Len() int { return len(h.patterns) }
