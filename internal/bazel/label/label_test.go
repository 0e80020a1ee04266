package label

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strptr(s string) *string { return &s }

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Label
	}{
		{
			name: "full label",
			text: "@rules_go//go/private:rules.bzl",
			want: Label{Repo: strptr("rules_go"), Pkg: strptr("go/private"), Name: "rules.bzl"},
		},
		{
			name: "canonical repository",
			text: "@@rules_go~v0.39.1//go:def.bzl",
			want: Label{Repo: strptr("rules_go~v0.39.1"), Pkg: strptr("go"), Name: "def.bzl"},
		},
		{
			name: "empty repository",
			text: "@//tools:deploy.bzl",
			want: Label{Repo: strptr(""), Pkg: strptr("tools"), Name: "deploy.bzl"},
		},
		{
			name: "repository only",
			text: "@dist//",
			want: Label{Repo: strptr("dist"), Pkg: strptr(""), Name: ""},
		},
		{
			name: "name defaults to last package segment",
			text: "//foo/bar",
			want: Label{Pkg: strptr("foo/bar"), Name: "bar"},
		},
		{
			name: "single segment package",
			text: "//foo",
			want: Label{Pkg: strptr("foo"), Name: "foo"},
		},
		{
			name: "root package",
			text: "//:lib.bzl",
			want: Label{Pkg: strptr(""), Name: "lib.bzl"},
		},
		{
			name: "package with empty name",
			text: "//foo:",
			want: Label{Pkg: strptr("foo"), Name: ""},
		},
		{
			name: "relative",
			text: ":helper.bzl",
			want: Label{Name: "helper.bzl"},
		},
		{
			name: "bare name",
			text: "helper.bzl",
			want: Label{Name: "helper.bzl"},
		},
		{
			name: "empty",
			text: "",
			want: Label{Name: ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.text, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestParse_InvalidSyntax(t *testing.T) {
	for _, text := range []string{"@", "@repo", "@repo:target"} {
		_, err := Parse(text)
		if err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", text)
		}
		var syntaxErr *SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Fatalf("Parse(%q) returned %T, want *SyntaxError", text, err)
		}
		if syntaxErr.Text != text {
			t.Errorf("SyntaxError.Text = %q, want %q", syntaxErr.Text, text)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		label Label
		want  string
	}{
		{Label{Repo: strptr("rules_go"), Pkg: strptr("go"), Name: "def.bzl"}, "@rules_go//go:def.bzl"},
		{Label{Repo: strptr(""), Pkg: strptr("tools"), Name: "x.bzl"}, "@//tools:x.bzl"},
		{Label{Repo: strptr("dist"), Pkg: strptr(""), Name: ""}, "@dist//"},
		{Label{Pkg: strptr("foo"), Name: "foo"}, "//foo:foo"},
		{Label{Name: "helper.bzl"}, ":helper.bzl"},
	}
	for _, tt := range tests {
		if got := tt.label.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, text := range []string{
		"@rules_go//go:def.bzl",
		"@dist//",
		"//foo:foo",
		":helper.bzl",
	} {
		l, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q): %v", text, err)
		}
		if got := l.String(); got != text {
			t.Errorf("Parse(%q).String() = %q", text, got)
		}
	}
}
