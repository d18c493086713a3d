package pack

import (
	"strings"

	"github.com/matzehuels/govend/pkg/vcs"
)

// KnownHostResolver recognizes hosting services whose repository root is
// implied by the path shape.
type KnownHostResolver struct{}

// knownHosts maps a host to the URL of a root below it.
var knownHosts = map[string]func(segments []string) string{
	"github.com":    hostedURL,
	"gitlab.com":    hostedURL,
	"bitbucket.org": hostedURL,
	"golang.org": func(s []string) string {
		if s[1] != "x" {
			return ""
		}
		return "https://go.googlesource.com/" + s[2]
	},
}

func hostedURL(s []string) string {
	return "https://" + strings.Join(s[:3], "/")
}

// Resolve returns a git package rooted at the first three segments.
func (KnownHostResolver) Resolve(importPath string) (Package, bool, error) {
	segments := strings.Split(importPath, "/")
	if len(segments) < 3 {
		return Package{}, false, nil
	}
	urlFor, ok := knownHosts[segments[0]]
	if !ok {
		return Package{}, false, nil
	}
	url := urlFor(segments)
	if url == "" {
		return Package{}, false, nil
	}
	pkg, err := NewVCS(importPath, strings.Join(segments[:3], "/"), vcs.Git, url)
	return pkg, err == nil, err
}
