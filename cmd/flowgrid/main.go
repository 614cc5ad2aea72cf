// Command flowgrid runs workflow documents, either as a one-shot CLI run
// or as an HTTP service.
//
// Usage:
//
//	flowgrid serve                          # start the HTTP service
//	flowgrid serve --config flowgrid.yaml   # with a config file
//	flowgrid run --workflow wf.json         # execute one document
//	flowgrid validate --workflow wf.json    # check without executing
//	flowgrid version
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/flowgrid/flowgrid/api"
)

var (
	// Injected at build time via -ldflags.
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "run":
		runOnce(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("flowgrid %s (%s)\n", Version, GitCommit)
}

func printUsage() {
	fmt.Fprint(os.Stderr, `flowgrid - workflow execution engine

Commands:
  serve      Start the HTTP service
  run        Execute a workflow document once
  validate   Validate a workflow document without executing
  version    Print version information

Run "flowgrid <command> -h" for command flags.
`)
}

func init() {
	// Keep the health endpoint's version in sync with the binary's.
	api.Version = Version
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func parseFlags(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
}
