// Package main is the entry point for the flakekit CLI.
package main

import "flakekit/internal/cli"

func main() {
	cli.Execute()
}
