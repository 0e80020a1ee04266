package main

import (
	"os"

	"github.com/albertocavalcante/bzlnav/internal/cmd/bzlnavlsp"
)

func main() {
	os.Exit(bzlnavlsp.Run(os.Args[1:]))
}
