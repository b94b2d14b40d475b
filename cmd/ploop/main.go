package main

import "github.com/polyforge/ploop/pkg/cmd"

func main() {
	cmd.Execute()
}
