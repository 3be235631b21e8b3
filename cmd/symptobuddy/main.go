// Command symptobuddy records symptom checks and manages the device-local
// profile and test history.
package main

import (
	"fmt"
	"io"
	"os"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "symptobuddy: %v\n", err)
		return 1
	}
	return 0
}
