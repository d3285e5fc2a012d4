package main

import "github.com/workforce-sim/workforce-sim/cmd"

func main() {
	cmd.Execute()
}
