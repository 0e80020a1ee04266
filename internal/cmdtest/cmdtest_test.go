package cmdtest

import (
	"testing"
)

func TestMain(m *testing.M) {
	Main(m)
}

func TestBzlnav(t *testing.T) {
	Run(t, "testdata/bzlnav")
}

func TestBzlnavLSP(t *testing.T) {
	Run(t, "testdata/bzlnavlsp")
}
