// Package main provides the entry point for the matmul CLI.
package main

import "yqhp/matmul-engine/cmd"

func main() {
	cmd.Execute()
}
