// Package main is the entry point for the userbase server.
//
// All the work happens in internal/cli; main only hands over control so the
// command tree stays testable.
package main

import "github.com/sakif/userbase/internal/cli"

func main() {
	cli.Execute()
}
