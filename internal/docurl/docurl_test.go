package docurl

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		wantPath string
		wantFile bool
	}{
		{"plain file", "file:///workspace/BUILD", "/workspace/BUILD", true},
		{"escaped space", "file:///my%20project/defs.bzl", "/my project/defs.bzl", true},
		{"untitled buffer", "untitled:Untitled-1", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := Parse(tt.uri)
			if u.IsFile() != tt.wantFile {
				t.Fatalf("IsFile() = %v, want %v", u.IsFile(), tt.wantFile)
			}
			path, ok := u.Filename()
			if ok != tt.wantFile || path != tt.wantPath {
				t.Errorf("Filename() = %q, %v, want %q, %v", path, ok, tt.wantPath, tt.wantFile)
			}
			if u.String() != tt.uri {
				t.Errorf("String() = %q, want %q", u.String(), tt.uri)
			}
		})
	}
}

func TestFile(t *testing.T) {
	u := File("/workspace/foo/bar.bzl")
	if !u.IsFile() {
		t.Fatal("File() did not produce a file URL")
	}
	if path, _ := u.Filename(); path != "/workspace/foo/bar.bzl" {
		t.Errorf("Filename() = %q", path)
	}
	if got := u.String(); got != "file:///workspace/foo/bar.bzl" {
		t.Errorf("String() = %q", got)
	}

	if File("").IsFile() {
		t.Error("File(\"\") should be a virtual document")
	}
}
