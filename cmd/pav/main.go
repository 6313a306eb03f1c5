package main

import "pav/internal/cli"

func main() {
	cli.Execute()
}
