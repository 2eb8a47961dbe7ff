// Package main provides the entry point for the mom build runner.
package main

import "os"

func main() {
	os.Exit(Execute())
}
