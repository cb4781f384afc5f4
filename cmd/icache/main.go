// icache is a small CLI for exercising and inspecting an itemcache.Cache.
//
// Usage:
//
//	icache repl [--data-dir DIR]   Interactive session against a cache
//	icache segcheck --catalog DB   Audit a segment catalog for consistency
//
// Commands (in REPL):
//
//	get <key>             Look up a key, reading through the manifest
//	put <key> <value>     Create a new item
//	update <key> <value>  Update an existing item
//	del <key>             Delete an item
//	dirty                 Show dirty item/byte counts
//	flush                 Flush dirty items to a new segment
//	ranges                List covered key ranges
//	audit                 Run AuditTree and report the result
//	help                  Show the icache usage lines
//	exit / quit / q       Exit
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)

		return 2
	}

	switch args[0] {
	case "repl":
		return cmdRepl(out, errOut, args[1:])
	case "segcheck":
		return cmdSegcheck(out, errOut, args[1:])
	case "-h", "--help", "help":
		printUsage(out)

		return 0
	default:
		fmt.Fprintf(errOut, "icache: unknown command %q\n", args[0])
		printUsage(errOut)

		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  icache repl [--data-dir DIR]   Interactive session against a cache")
	fmt.Fprintln(w, "  icache segcheck --catalog DB   Audit a segment catalog for consistency")
}
