package main

import "github.com/oshokin/adbroot-builder/cmd/adbroot-builder/cmd"

func main() {
	cmd.Execute()
}
