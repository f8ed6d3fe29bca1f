// Package main implements the Falcon CLI: the process entrypoint that
// wires the store, event bus, sandbox/agent/source-host collaborators,
// job orchestrator, and chat services together and exposes the thin
// HTTP/SSE boundary named (but left out of scope) by spec §6. Modeled
// on the teacher's cmd/cie dispatch: a global pflag set with
// SetInterspersed(false) so subcommand flags pass through untouched.
//
// Usage:
//
//	falcon serve [--http-addr] [--metrics-addr]   Run the orchestrator + HTTP boundary
//	falcon ingest <url>                            One-shot repo ingestion (component 2)
//	falcon status                                  Print /health against a running server
//	falcon version                                 Print version information
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flag.CommandLine = flag.NewFlagSet("falcon", flag.ContinueOnError)
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		noColor     = flag.Bool("no-color", false, "Disable color output")
	)
	flag.SetInterspersed(false)
	flag.Usage = printUsage

	if err := flag.CommandLine.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Printf("falcon version %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}

	if *noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	rest := flag.CommandLine.Args()
	if len(rest) == 0 {
		printUsage()
		return 1
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "serve":
		return runServe(cmdArgs)
	case "ingest":
		return runIngest(cmdArgs)
	case "status":
		return runStatus(cmdArgs)
	case "version":
		fmt.Printf("falcon version %s (commit %s, built %s)\n", version, commit, date)
		return 0
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "falcon: unknown command %q\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Falcon - repository wiki generation and chat exploration

Usage:
  falcon <command> [options]

Commands:
  serve     Start the job orchestrator and the HTTP/SSE boundary
  ingest    Ingest one repository's working tree into the file index
  status    Print /health from a running falcon serve instance
  version   Show version information

Global Options:
  --no-color   Disable colored terminal output (respects NO_COLOR)
  -V, --version

Environment:
  FALCON_DATABASE_PATH, FALCON_WIKI_STORAGE_ROOT, FALCON_CODEX_API_KEY,
  FALCON_CODEX_TIMEOUT_SECONDS, FALCON_CODEX_MAX_CONCURRENT,
  FALCON_MAX_CONCURRENT_JOBS, FALCON_JOB_MAX_ATTEMPTS,
  FALCON_JOB_POLL_INTERVAL_SECONDS, FALCON_GITHUB_API_TOKEN,
  FALCON_MAX_FILE_SIZE, FALCON_METRICS_ADDR, FALCON_HTTP_ADDR
`)
}
