// Command webpm is the native CLI front end for the PM core, fronting
// internal/pm against a real disk via internal/vfs.Native. Grounded on the
// teacher's cmd/turbo/main.go entry shape (a thin main delegating
// immediately into an internal/cmd root command).
package main

import (
	"os"

	"webpm/internal/cmdline"
)

func main() {
	os.Exit(cmdline.Execute(os.Args[1:]))
}
