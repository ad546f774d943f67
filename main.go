package main

import "github.com/bcaldwell/homeparser/cmd"

func main() {
	cmd.Execute()
}
