package filetype

import "testing"

func TestFromName(t *testing.T) {
	tests := []struct {
		name string
		want Type
	}{
		{"BUILD", TypeBuild},
		{"BUILD.bazel", TypeBuild},
		{"WORKSPACE", TypeWorkspace},
		{"WORKSPACE.bazel", TypeWorkspace},
		{"MODULE.bazel", TypeModule},
		{"defs.bzl", TypeLibrary},
		{"main.cc", TypeUnknown},
		{"BUILD.gn", TypeUnknown},
		{"", TypeUnknown},
	}
	for _, tt := range tests {
		if got := FromName(tt.name); got != tt.want {
			t.Errorf("FromName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFromPath(t *testing.T) {
	if got := FromPath("/ws/pkg/BUILD.bazel"); got != TypeBuild {
		t.Errorf("FromPath(BUILD.bazel path) = %v, want %v", got, TypeBuild)
	}
	if got := FromPath("/ws/tools/rules.bzl"); got != TypeLibrary {
		t.Errorf("FromPath(.bzl path) = %v, want %v", got, TypeLibrary)
	}
}

func TestLoadable(t *testing.T) {
	if !TypeLibrary.Loadable() {
		t.Error("TypeLibrary should be loadable")
	}
	for _, typ := range []Type{TypeBuild, TypeWorkspace, TypeModule, TypeUnknown} {
		if typ.Loadable() {
			t.Errorf("%v should not be loadable", typ)
		}
	}
}
