package main

import "anchor-router/internal/cli"

func main() {
	cli.Execute()
}
