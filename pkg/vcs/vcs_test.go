package vcs

import (
	"testing"

	"github.com/matzehuels/govend/pkg/errors"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"", Git, false},
		{"git", Git, false},
		{" GIT ", Git, false},
		{"hg", Mercurial, false},
		{"mod", Module, false},
		{"local", Local, false},
		{"cvs", "", true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, errors.ErrCodeConfig) {
				t.Errorf("ParseType(%q) code = %s, want %s", tt.in, errors.GetCode(err), errors.ErrCodeConfig)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOriginString(t *testing.T) {
	tests := []struct {
		origin Origin
		want   string
	}{
		{Origin{Type: Git, URL: "https://github.com/a/b"}, "git+https://github.com/a/b"},
		{Origin{Type: Module, URL: "https://proxy.golang.org", Root: "github.com/a/b"}, "mod+https://proxy.golang.org#github.com/a/b"},
		{Origin{Type: Local, Dir: "/src/b"}, "local+/src/b"},
	}
	for _, tt := range tests {
		if got := tt.origin.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRefAndVersionString(t *testing.T) {
	if !(Ref{}).IsZero() {
		t.Error("zero Ref should report IsZero")
	}
	if got := (Ref{Tag: "v1.0.0"}).String(); got != "v1.0.0" {
		t.Errorf("Ref.String() = %q", got)
	}
	if got := (Ref{}).String(); got != "default branch" {
		t.Errorf("Ref.String() = %q", got)
	}
	if got := (Version{Revision: "abc", Tag: "v1"}).String(); got != "v1@abc" {
		t.Errorf("Version.String() = %q", got)
	}
	if got := (Version{Revision: "v1.2.0", Tag: "v1.2.0"}).String(); got != "v1.2.0" {
		t.Errorf("Version.String() = %q", got)
	}
}

func TestRegistry(t *testing.T) {
	local := NewLocal()
	r := NewRegistry().Register(Local, local)

	got, err := r.Get(Local)
	if err != nil {
		t.Fatalf("Get(Local): %v", err)
	}
	if got != local {
		t.Error("Get returned a different provider")
	}

	_, err = r.Get(Subversion)
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("Get(Subversion) error = %v, want UNSUPPORTED", err)
	}
}

