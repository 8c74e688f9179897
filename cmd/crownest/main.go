package main

import "github.com/grovetools/crownest/cmd"

func main() {
	cmd.Execute()
}
