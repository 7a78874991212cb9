package main

import "github.com/dyike/forexcell/internal/cli"

func main() {
	cli.Run()
}
