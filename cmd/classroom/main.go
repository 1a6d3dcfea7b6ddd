package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	exitOK = iota
	exitRuntime
	exitConfig
)

// configError marks failures the operator fixes in the environment.
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

func main() {
	_ = godotenv.Load(".env")
	os.Exit(run(os.Args[1:]))
}

// run keeps os.Exit out of the way of deferred cleanups.
func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		var cfgErr configError
		if errors.As(err, &cfgErr) {
			return exitConfig
		}
		return exitRuntime
	}
	return exitOK
}
