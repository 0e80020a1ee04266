package main

import (
	"os"

	"github.com/albertocavalcante/bzlnav/internal/cmd/bzlnav"
)

func main() {
	os.Exit(bzlnav.Run(os.Args[1:]))
}
