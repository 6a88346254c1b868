// Package main provides the Metron command line interface.
package main

import "github.com/leapstack-labs/metron/internal/cli"

func main() {
	cli.Execute()
}
