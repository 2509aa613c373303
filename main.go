package main

import "github.com/agentic-research/scaffold/cmd"

func main() {
	cmd.Execute()
}
