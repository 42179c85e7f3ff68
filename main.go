// Copyright (c) 2026 Keymaster Team
// Keyfetch - SSH key provisioning utility
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for Keyfetch.
//
// Usage:
//
//	go run . [account] [topic]
//	./keyfetch [account] [topic]
//
// This launches the Keyfetch CLI. See --help for options.
package main

import (
	"os"

	"github.com/toeirei/keyfetch/ui/cli"
)

// main is the entrypoint for the Keyfetch CLI.
func main() {
	os.Exit(cli.Execute())
}
